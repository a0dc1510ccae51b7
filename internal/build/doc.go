// Package build executes build plans against a container runtime.
//
// A plan names a base image, an ordered list of copy entries, an
// optional dependency installation, and the startup command for the
// finished image. The bake pipeline resolves and pulls the base, turns
// each copy entry into one reproducible layer built on the host, runs
// the installer inside a build container to capture its filesystem
// changes as a further layer, and assembles the result into a tagged
// image whose config records the startup command.
//
// Steps run strictly in plan order and any failure aborts the bake;
// nothing is published under the tag unless every step succeeded.
// Container and image operations are delegated to the runtime package
// through the [ContainerRuntime] interface.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Plan:     p,
//	    Root:     ".",
//	    Tag:      "app:latest",
//	    Output:   "dist",
//	    Platform: "linux/amd64",
//	})
//	if err != nil {
//	    return err
//	}
package build
