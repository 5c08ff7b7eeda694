// Package installer compiles the Windows installer for a frozen bundle.
//
// The installer script templates include two small fragments that carry
// per-build values: the product version and output location, and an
// optional Start-menu entry for the optional component. [Builder.Build]
// writes both fragments next to the templates, runs the compiler located
// through a [toolchain.Locator], and deletes the fragments again whatever
// the outcome.
//
// Compilation is skipped when the installer already exists and is newer
// than both the frozen executable and the selected template.
//
// Example usage:
//
//	b := &installer.Builder{
//	    ProductName: "CellProfiler",
//	    Version:     "2.2.0",
//	    ScriptDir:   ".",
//	    Template32:  "CellProfiler.iss",
//	    Template64:  "CellProfiler64.iss",
//	    Executable:  "CellProfiler.exe",
//	    Extension:   ".exe",
//	    Compiler:    toolchain.Tool{Name: "iscc", FileType: "InnoSetupScriptFile"},
//	    Locator:     toolchain.RegistryLocator{},
//	}
//	res, err := b.Build(ctx, installer.Request{
//	    BundleDir:     "dist",
//	    OutputDir:     "output",
//	    InstallerName: "CellProfiler-2.2.0",
//	})
package installer
