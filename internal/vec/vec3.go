package vec

import "math"

// Vec3 представляет позицию блока в мире
type Vec3 struct {
	X int
	Y int
	Z int
}

// Vec3Float представляет позицию сущности с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// Column возвращает горизонтальную проекцию позиции
func (v Vec3) Column() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// ChunkCoords возвращает координаты чанка, содержащего блок
func (v Vec3) ChunkCoords() Vec2 {
	return v.Column().ToChunkCoords()
}

// Local возвращает координаты блока внутри его чанка (Y не меняется)
func (v Vec3) Local() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y, Z: v.Z & 0xF}
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Block возвращает блок, в котором находится точка
func (v Vec3Float) Block() Vec3 {
	return Vec3{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}
