// Package files provides the file-system plumbing around the cleaning
// pipeline.
//
// Discovery finds CSV exports in a folder for batch runs. Workspace is the
// transient directory an upload batch is saved into and processed in; it is
// removed when the batch finishes, whether or not processing succeeded.
//
// Example usage:
//
//	discovery := files.NewDiscovery("")
//	csvFiles, err := discovery.FindCSVFiles("exports")
//
//	ws, err := files.NewWorkspace("", "contacts-", logger)
//	defer ws.Close()
//	path, err := ws.Save(header.Filename, upload)
package files
