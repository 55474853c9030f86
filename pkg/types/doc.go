// Package types holds the status and statistics structures shared between
// storenode components and rendered by the API server.
package types
