// Package watcher turns filesystem changes under an fs object store bucket
// into debounced build triggers.
//
// fsnotify is used when available. Where it fails, for example on some
// network mounts, the watcher falls back to polling the tree.
//
// Usage:
//
//	w, err := watcher.New(watcher.Options{Root: bucketDir, Prefix: "posts/", Suffix: ".json"})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx) }()
//	watcher.TriggerOnChange(ctx, w, sched, logger)
package watcher
