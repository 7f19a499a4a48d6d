package correction

// Kind identifies one of the fixed instrument corrections. The declaration
// order is the canonical execution order of the pipeline; adding a new
// correction means adding a variant here plus its data table.
type Kind int

const (
	GratingEfficiency Kind = iota
	FiberAttenuation
	QuantumEfficiency
	LensTransmission
	MirrorReflectance

	numKinds
)

// Kinds returns all corrections in canonical pipeline order.
func Kinds() []Kind {
	return []Kind{
		GratingEfficiency,
		FiberAttenuation,
		QuantumEfficiency,
		LensTransmission,
		MirrorReflectance,
	}
}

var kindNames = [numKinds]string{
	GratingEfficiency: "Grating efficiency (600 l/mm, 500 nm blaze)",
	FiberAttenuation:  "Fiber attenuation (ThorLabs M59L02)",
	QuantumEfficiency: "Camera QE (Newton DU920P_BX2DD)",
	LensTransmission:  "Lens transmission (ThorLabs QTH10/M)",
	MirrorReflectance: "Silvered mirrors (Andor Kymera 328i-D2-sil)",
}

var kindFiles = [numKinds]string{
	GratingEfficiency: "grating_600lm_500nmBlaze_efficiency.csv",
	FiberAttenuation:  "fiber_M59L02-attenuation.csv",
	QuantumEfficiency: "camera_quantum_efficiency.csv",
	LensTransmission:  "QTH_lamp_lens.csv",
	MirrorReflectance: "spectrometer_silvered-mirrors_reflectivity.csv",
}

// Name returns the display name of the correction, including the
// instrument component it compensates for.
func (k Kind) Name() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return kindNames[k]
}

// DataFile returns the calibration table file name for the correction.
func (k Kind) DataFile() string {
	if k < 0 || k >= numKinds {
		return ""
	}
	return kindFiles[k]
}

// KindByName resolves a display name back to its Kind.
func KindByName(name string) (Kind, bool) {
	for _, k := range Kinds() {
		if kindNames[k] == name {
			return k, true
		}
	}
	return 0, false
}

func (k Kind) String() string { return k.Name() }
