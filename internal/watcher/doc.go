// Package watcher follows the content fixture on disk. Changes are
// debounced, the fixture is parsed again, and the new content is handed to
// a reload callback that reindexes it.
//
// fsnotify is used when available; otherwise the file is polled.
//
//	r, err := watcher.NewReloader(path, watcher.DefaultOptions(), svc.Reload)
//	if err != nil {
//	    return err
//	}
//	go r.Run(ctx)
package watcher
