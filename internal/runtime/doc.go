// Package runtime manages images and containers backed by containerd.
//
// A [Runtime] connects to a containerd daemon and provides the
// operations a bake needs: pulling base images, ingesting layer blobs
// built outside containerd, running an installer inside a build
// container and committing its filesystem changes, and assembling the
// final image record from a base manifest plus appended layers. Images
// can be exported to and imported from OCI archives.
//
// Launching runs a stored image as a fresh container instance. Each
// instance gets its own overlayfs snapshot, so concurrent launches of
// one image never see each other's writes. The entry process's exit
// status is reported to the caller; instances are removed after exit
// unless explicitly kept.
//
// Example usage:
//
//	rt, err := runtime.New("/run/containerd/containerd.sock", "kilnd")
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	if _, err := rt.PullImage(ctx, "docker.io/library/python:3", "linux/amd64"); err != nil {
//	    return err
//	}
//
//	desc, err := rt.AssembleImage(ctx, runtime.AssembleOptions{
//	    From:     "docker.io/library/python:3",
//	    Layers:   layers,
//	    Command:  []string{"python", "main.py"},
//	    Tag:      "app:latest",
//	    Platform: "linux/amd64",
//	    Unpack:   true,
//	})
//	if err != nil {
//	    return err
//	}
//
//	result, err := rt.Launch(ctx, runtime.LaunchOptions{Image: "app:latest"})
//	if err != nil {
//	    return err
//	}
package runtime
