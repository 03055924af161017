package constants

/*
Defines a set of base level
constants and enums to be used
throughout the viewer and it's
associated services.
*/
type AssemblyId string
type AnnotationSource string
type AnnotationStatus string
type StarRating string
type SortDirection string
