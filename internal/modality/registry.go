package modality

// Technique is a named transform offered for a modality.
type Technique struct {
	ID    string
	Label string
}

var preprocessing = map[Modality][]Technique{
	Image: {
		{ID: "grayscale", Label: "Convert to Grayscale"},
		{ID: "resize", Label: "Resize (224x224)"},
		{ID: "normalize", Label: "Normalize"},
	},
	Text: {
		{ID: "lowercase", Label: "Convert to Lowercase"},
		{ID: "remove_punctuation", Label: "Remove Punctuation"},
		{ID: "tokenize", Label: "Tokenize"},
		{ID: "remove_stopwords", Label: "Remove Stopwords"},
	},
	Audio: {
		{ID: "normalize", Label: "Normalize"},
		{ID: "noise_reduction", Label: "Noise Reduction"},
		{ID: "trim_silence", Label: "Trim Silence"},
	},
	Mesh: {
		{ID: "normalize", Label: "Normalize"},
		{ID: "center", Label: "Center"},
		{ID: "simplify", Label: "Simplify"},
	},
}

var augmentation = map[Modality][]Technique{
	Image: {
		{ID: "flip", Label: "Flip"},
		{ID: "rotate", Label: "Rotate"},
		{ID: "noise", Label: "Add Noise"},
	},
	Text: {
		{ID: "synonym", Label: "Synonym Replacement"},
		{ID: "insertion", Label: "Random Insertion"},
	},
	Audio: {
		{ID: "pitch_shift", Label: "Pitch Shift"},
		{ID: "time_stretch", Label: "Time Stretch"},
		{ID: "reverse", Label: "Reverse"},
	},
	Mesh: {
		{ID: "rotate", Label: "Rotate"},
		{ID: "scale", Label: "Scale"},
		{ID: "noise", Label: "Add Noise"},
	},
}

// PreprocessingTechniques returns the ordered preprocessing options for m.
// Unknown modalities yield an empty list.
func PreprocessingTechniques(m Modality) []Technique {
	return clone(preprocessing[m])
}

// AugmentationTechniques returns the ordered augmentation options for m.
// Unknown modalities yield an empty list.
func AugmentationTechniques(m Modality) []Technique {
	return clone(augmentation[m])
}

// Offers reports whether id is listed for m under the given kind
// ("preprocess" or "augment").
func Offers(m Modality, kind, id string) bool {
	var list []Technique
	switch kind {
	case "preprocess":
		list = preprocessing[m]
	case "augment":
		list = augmentation[m]
	}
	for _, t := range list {
		if t.ID == id {
			return true
		}
	}
	return false
}

func clone(src []Technique) []Technique {
	out := make([]Technique, len(src))
	copy(out, src)
	return out
}
