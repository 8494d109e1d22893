package training

import (
	"errors"

	"github.com/Brownie44l1/food-api/internal/model"
)

// Plan is the complete training recipe handed to the trainer backend:
// a frozen pretrained backbone with a new dense head (phase one), then a
// short fine-tuning pass with the top backbone layers unfrozen (phase two).
type Plan struct {
	Backbone      string       `json:"backbone"`
	Weights       string       `json:"weights"`
	ImageSize     int          `json:"image_size"`
	BatchSize     int          `json:"batch_size"`
	Classes       []string     `json:"classes"`
	TrainDir      string       `json:"train_dir"`
	ValidationDir string       `json:"validation_dir"`
	Pooling       string       `json:"pooling"`
	Head          []Dense      `json:"head"`
	Augmentation  Augmentation `json:"augmentation"`
	Phases        []Phase      `json:"phases"`
	Metrics       []string     `json:"metrics"`
	ExportFormat  string       `json:"export_format"`
}

// Dense is one hidden layer of the classification head. The softmax output
// layer sized to len(Classes) is implied.
type Dense struct {
	Units      int     `json:"units"`
	Activation string  `json:"activation"`
	Dropout    float64 `json:"dropout"`
}

// Augmentation applies to the training split only.
type Augmentation struct {
	RotationRange    float64 `json:"rotation_range"`
	WidthShiftRange  float64 `json:"width_shift_range"`
	HeightShiftRange float64 `json:"height_shift_range"`
	ShearRange       float64 `json:"shear_range"`
	ZoomRange        float64 `json:"zoom_range"`
	HorizontalFlip   bool    `json:"horizontal_flip"`
	FillMode         string  `json:"fill_mode"`
}

type Phase struct {
	Name         string  `json:"name"`
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	// TrainableBackboneLayers counts backbone layers, from the top, that are
	// unfrozen. Zero keeps the whole backbone frozen.
	TrainableBackboneLayers int                `json:"trainable_backbone_layers"`
	MaxSteps                int                `json:"max_steps_per_epoch"`
	MaxValidationSteps      int                `json:"max_validation_steps"`
	EarlyStopping           *EarlyStopping     `json:"early_stopping,omitempty"`
	ReduceLROnPlateau       *ReduceLROnPlateau `json:"reduce_lr_on_plateau,omitempty"`
}

type EarlyStopping struct {
	Monitor            string `json:"monitor"`
	Patience           int    `json:"patience"`
	RestoreBestWeights bool   `json:"restore_best_weights"`
}

type ReduceLROnPlateau struct {
	Monitor  string  `json:"monitor"`
	Factor   float64 `json:"factor"`
	Patience int     `json:"patience"`
	MinLR    float64 `json:"min_lr"`
}

const (
	DefaultEpochs         = 10
	DefaultFineTuneEpochs = 5
)

// NewPlan builds the transfer-learning recipe for classes.
func NewPlan(classes []string, trainDir, validationDir string, epochs, fineTuneEpochs int) *Plan {
	return &Plan{
		Backbone:      "MobileNetV2",
		Weights:       "imagenet",
		ImageSize:     model.DefaultImageSize,
		BatchSize:     32,
		Classes:       append([]string(nil), classes...),
		TrainDir:      trainDir,
		ValidationDir: validationDir,
		Pooling:       "global_average",
		Head: []Dense{
			{Units: 256, Activation: "relu", Dropout: 0.5},
			{Units: 128, Activation: "relu", Dropout: 0.3},
		},
		Augmentation: Augmentation{
			RotationRange:    20,
			WidthShiftRange:  0.2,
			HeightShiftRange: 0.2,
			ShearRange:       0.2,
			ZoomRange:        0.2,
			HorizontalFlip:   true,
			FillMode:         "nearest",
		},
		Phases: []Phase{
			{
				Name:               "head",
				Epochs:             epochs,
				LearningRate:       1e-3,
				MaxSteps:           100,
				MaxValidationSteps: 50,
				EarlyStopping:      &EarlyStopping{Monitor: "val_accuracy", Patience: 3, RestoreBestWeights: true},
				ReduceLROnPlateau:  &ReduceLROnPlateau{Monitor: "val_loss", Factor: 0.2, Patience: 2, MinLR: 1e-5},
			},
			{
				Name:                    "fine_tune",
				Epochs:                  fineTuneEpochs,
				LearningRate:            1e-4,
				TrainableBackboneLayers: 4,
				MaxSteps:                100,
				MaxValidationSteps:      50,
				EarlyStopping:           &EarlyStopping{Monitor: "val_accuracy", Patience: 2, RestoreBestWeights: true},
			},
		},
		Metrics:      []string{"accuracy", "top_3_accuracy"},
		ExportFormat: "onnx",
	}
}

func (p *Plan) Validate() error {
	if len(p.Classes) < 2 {
		return errors.New("training needs at least two classes")
	}
	if len(p.Phases) == 0 || p.Phases[0].Epochs < 1 {
		return errors.New("epochs must be at least 1")
	}
	for _, ph := range p.Phases[1:] {
		if ph.Epochs < 0 {
			return errors.New("fine_tune_epochs must not be negative")
		}
	}
	return nil
}
