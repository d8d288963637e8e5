// Package api contains the JSON contracts of the contact cleaner HTTP API.
package api

// FolderRunRequest asks the server to clean every CSV file in a folder it can
// read.
type FolderRunRequest struct {
	Directory string `json:"directory" validate:"required,max=4096,cleanpath"`
}
