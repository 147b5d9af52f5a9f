// Package validator builds declarative request validation from small Rule
// values. Apply evaluates the rules and aggregates failures into
// ValidationErrors, which satisfies error and maps onto per-field details.
//
//	err := validator.Apply(
//		validator.RequiredString("school_id", event.SchoolID),
//		validator.RequiredSlice("recipients", event.Recipients),
//		validator.MaxLenSlice("recipients", event.Recipients, 1000),
//	)
//	if verrs := validator.ExtractValidationErrors(err); verrs != nil {
//		details := verrs.Details()
//	}
package validator
