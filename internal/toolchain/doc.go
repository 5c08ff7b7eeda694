// Package toolchain locates the external tools build steps invoke.
//
// A [Locator] maps a tool name to a [Command]: the command line registered
// for the tool, with "%1" standing for the input file. Locators can be
// combined with [Chain] so that an explicit configuration takes precedence
// over a platform lookup.
//
// On Windows the installer compiler is registered as a shell verb of its
// script file type, which [RegistryLocator] reads. On other platforms the
// registry locator always reports [ErrMissingTool].
//
// Example usage:
//
//	loc := toolchain.Chain{
//	    toolchain.StaticLocator{"iscc": `"C:\Tools\ISCC.exe" "%1"`},
//	    toolchain.RegistryLocator{},
//	}
//	cmd, err := loc.Locate(ctx, toolchain.Tool{Name: "iscc", FileType: "InnoSetupScriptFile"})
//	if err != nil {
//	    return err
//	}
//	argv, err := cmd.Argv("cellprofiler.iss")
package toolchain
