// Package imagetypes defines the set of image file extensions the indexer
// considers for processing.
package imagetypes
