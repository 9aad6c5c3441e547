// Package vision wraps the frame-analysis capability service: scene
// description, on-screen text OCR and actor identification. Failures degrade
// the signal set and are never fatal to a request.
package vision
