// Package bundle assembles the frozen application bundle.
//
// An [Assembler] collects every file the bundle needs into a [Manifest]: a
// mapping from bundle directories to source files. Mandatory inputs come
// first (artwork, version metadata, the entry script and the fetched
// dependency located through its classpath manifest). Conditional inputs
// follow, gated by detected library versions, the optional component flag
// and the redistributables directory. The manifest only grows, and it is
// sealed before the [Freezer] sees it.
//
// Some native modules are linked by file name. They are added as pinned
// entries at the bundle root and excluded from the freezer's own binary
// handling, so they are neither renamed nor relocated.
//
// [Archive] packs a finished bundle into a compressed tarball with a BLAKE3
// checksum file next to it.
//
// Example usage:
//
//	a := &bundle.Assembler{
//	    SourceDir:   ".",
//	    InputRoot:   ".",
//	    EntryScript: cfg.EntryScript,
//	    Config:      cfg.Freeze,
//	    Freezer:     &bundle.ExternalFreezer{Command: cfg.Freeze.Command},
//	}
//	m, err := a.Assemble(ctx, "dist", bundle.Flags{
//	    WithComponent: true,
//	    Libraries:     map[string]string{"pyzmq": "14.7.0"},
//	})
//	if err != nil {
//	    return err
//	}
package bundle
