package serviceInfo

import "fmt"

type ServiceInfo string

var (
	SERVICE_NAME        ServiceInfo = "Parkinson's Variant Viewer"
	SERVICE_WELCOME     ServiceInfo = "Welcome to the Parkinson's Variant Viewer API!"
	SERVICE_DESCRIPTION ServiceInfo = "Ingests patient VCF files and annotates variants with ClinVar, HGNC and VariantValidator data."
	SERVICE_CONTACT     ServiceInfo = "https://github.com/Parkinson-s-Variant-Viewer/Parkinsons-Variant-Viewer"

	SERVICE_ARTIFACT    ServiceInfo = "pvv"
	SERVICE_VERSION     ServiceInfo = "1.0.0"
	SERVICE_TYPE_NO_VER ServiceInfo = ServiceInfo(fmt.Sprintf("org.pvv:%s", SERVICE_ARTIFACT))
	SERVICE_ID          ServiceInfo = SERVICE_TYPE_NO_VER
	SERVICE_TYPE        ServiceInfo = ServiceInfo(fmt.Sprintf("%s:%s", SERVICE_TYPE_NO_VER, SERVICE_VERSION))
)
