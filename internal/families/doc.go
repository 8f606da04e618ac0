// Package families provides the built-in model capabilities executed by the
// sandbox: ordinary least squares regression (linreg) and k-nearest-neighbour
// regression (knn).
//
// Trained models serialize to msgpack and are restored with Decode.
package families
