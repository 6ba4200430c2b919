// internal/app/system/csvio/limits.go
package csvio

// Upload size limit for CSV request bodies.
const MaxUploadSize = 5 << 20 // 5 MB
