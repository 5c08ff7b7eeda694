// Package fetch downloads and caches the versioned binary dependency.
//
// The dependency is a single artifact published per version tag. It is
// cached under "<root>/<namespace>/jars/<artifact>-<version>.jar" where root
// is either the source tree (in-place) or the staged build directory. A
// classpath manifest next to it records the artifact's absolute path for the
// application and for bundle assembly.
//
// Cache hits are decided by existence alone. A file at the target path is
// never re-fetched, whatever its size. Transfers write to a ".part" file and
// rename it into place on success, so a failed transfer in this package does
// not leave a file that later passes for a cache hit.
//
// Example usage:
//
//	f := fetch.New(nil, fetch.Options{
//	    Progress: fetch.ProgressBar(os.Stderr, "prokaryote"),
//	})
//	dl, err := f.Fetch(ctx, "4.0.0", "build/lib")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(dl.Path, dl.Classpath)
package fetch
