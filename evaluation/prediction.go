package evaluation

import "github.com/carbocation/segeval/volume"

// Prediction is one of the prediction families a sample can be scored on:
// Registration or Segmentation.
type Prediction interface {
	family() Family
}

// Registration is a warped label volume, scored together with the rigidly
// aligned baseline it started from. Field is the deformation that produced
// Warped; when present, displacement magnitudes are scored too.
type Registration struct {
	Warped volume.Labels
	Rigid  volume.Labels
	Field  *volume.Field
}

func (Registration) family() Family { return FamilyRegistration }

// Segmentation is a label volume predicted directly.
type Segmentation struct {
	Predicted volume.Labels
}

func (Segmentation) family() Family { return FamilySegmentation }
