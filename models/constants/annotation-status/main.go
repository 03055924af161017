package annotationStatus

import (
	"pvv/api/models/constants"
)

const (
	Ok       constants.AnnotationStatus = "ok"
	NotFound constants.AnnotationStatus = "not_found"
	Error    constants.AnnotationStatus = "error"
)

// Supersedes reports whether an incoming result may replace the stored one.
// ok and not_found always win; an error only replaces another error.
// sqlite.Store.AttachAnnotation applies the same rule in its upsert clause.
func Supersedes(incoming constants.AnnotationStatus, existing constants.AnnotationStatus) bool {
	return incoming != Error || existing == Error
}
