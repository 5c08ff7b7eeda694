// Package project loads the build configuration of the application being
// packaged.
//
// The configuration lives in a YAML file at the root of the source tree,
// "cpbuild.yaml" by default. It names the product and its version, pins the
// binary dependency, and holds per-step settings for freezing, installer
// compilation, testing and publishing. Fields left out of the file take the
// values of [Default].
//
// A per-user file, see [paths.UserConfig], is decoded on top of the project
// file. It is the place for machine-specific values such as tool command
// lines, search paths and storage credentials.
//
// Example cpbuild.yaml:
//
//	name: CellProfiler
//	version: 2.2.0rc1
//	dependency:
//	  version: 1.0.3
//	freeze:
//	  command: [python, setup.py, py2exe]
//	  libraries:
//	    - name: pyzmq
//	      min_version: 14.0.0
//	      includes: [zmq.backend, zmq.backend.cython]
//	      pinned: [zmq/libzmq.pyd]
package project
