// Package skin describes a light skin: where its emitters and sensors sit,
// how sensor readings are obtained, and what each reading is expected to be
// when nothing obstructs the light.
//
// Key types: Layout, ForwardSensor, Calibration. Simulated and hardware
// backed sensors live here, as does the snapshot frame parser for the serial
// stream and the sensitivity analysis of a layout.
package skin
