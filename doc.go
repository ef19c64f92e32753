// Package plantcare is a small houseplant care assistant written in Go.
//
// It loads a static JSON catalog of houseplants, recommends a plant from
// simple household preferences, and trains a multi-output random forest that
// maps plant taxonomy (family, category, origin, climate) to care attributes
// (ideal light, watering). The inference service decodes the model's
// predictions into a human-readable care guide.
//
// # Layout
//
//   - internal/catalog: catalog loading, JSON Schema validation, flattening
//   - internal/codec: feature/target projection and label vocabularies
//   - internal/training: offline training, holdout evaluation, artifact publishing
//   - internal/artifact: atomic, run-stamped model bundles
//   - internal/inference: care guide service over a loaded bundle
//   - internal/recommend: preference-based plant recommender
//   - internal/config: koanf configuration (defaults, YAML, PLANTCARE_* env)
//   - internal/chart, internal/report: category chart (PNG/SVG) and XLSX evaluation
//   - preprocessing, sklearn/..., metrics: scikit-learn style estimators
//   - pkg/errors, pkg/log: structured errors and zerolog-backed logging
//
// # Quick Start
//
//	go run ./cmd/plantcare train -report evaluation.xlsx
//	go run ./cmd/plantcare care "Pothos"
//	go run ./cmd/plantcare recommend -light Bright -kids Yes
//
// Library use:
//
//	table, err := catalog.Load("data/house_plants.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts := training.DefaultOptions()
//	opts.ArtifactDir = "artifacts"
//	if _, err := training.Train(table, opts); err != nil {
//	    log.Fatal(err)
//	}
//
//	svc, err := inference.NewService("artifacts")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	guide, _ := svc.QueryCareInstructions(catalog.Find(table, "Pothos"))
//	fmt.Println(guide)
//	// Light: Bright indirect light
//	// Watering: dry
//	// Temperature: 59°F to 84.2°F
package plantcare
