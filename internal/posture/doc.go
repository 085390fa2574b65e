// Package posture turns per-frame body landmarks into a debounced posture
// alarm and a sitting-time session.
//
// Data flows one way per frame: landmarks -> features -> EMA smoothing ->
// rule classification -> hysteresis gate -> session / sedentary override ->
// payload. Smoother and Debouncer state belongs to the analysis loop; the
// SessionTracker is also read by status handlers and guards itself.
package posture
