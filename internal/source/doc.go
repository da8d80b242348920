// Package source retrieves a university listing page and extracts the items
// published under its most recent date heading.
package source
