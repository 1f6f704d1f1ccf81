package kernel

// GridSize is the number of thread blocks launched in each dimension.
type GridSize struct {
	X, Y, Z uint32
}

// Grid1D returns a one-dimensional grid of x blocks.
func Grid1D(x uint32) GridSize { return GridSize{X: x, Y: 1, Z: 1} }

// Grid2D returns a two-dimensional grid of x by y blocks.
func Grid2D(x, y uint32) GridSize { return GridSize{X: x, Y: y, Z: 1} }

// Grid3D returns a three-dimensional grid of x by y by z blocks.
func Grid3D(x, y, z uint32) GridSize { return GridSize{X: x, Y: y, Z: z} }

// BlockSize is the number of threads per block in each dimension.
type BlockSize struct {
	X, Y, Z uint32
}

// Block1D returns a one-dimensional block of x threads.
func Block1D(x uint32) BlockSize { return BlockSize{X: x, Y: 1, Z: 1} }

// Block2D returns a two-dimensional block of x by y threads.
func Block2D(x, y uint32) BlockSize { return BlockSize{X: x, Y: y, Z: 1} }

// Block3D returns a three-dimensional block of x by y by z threads.
func Block3D(x, y, z uint32) BlockSize { return BlockSize{X: x, Y: y, Z: z} }

// dims normalizes unset dimensions to 1 so literal values like
// GridSize{X: 64} launch as expected.
func dims(x, y, z uint32) [3]uint32 {
	if x == 0 {
		x = 1
	}
	if y == 0 {
		y = 1
	}
	if z == 0 {
		z = 1
	}
	return [3]uint32{x, y, z}
}
