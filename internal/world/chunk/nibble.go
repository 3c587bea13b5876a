package chunk

// NibbleArray упакованный массив 4-битных значений, по два на байт.
// Чётный индекс хранится в младшем полубайте, нечётный - в старшем.
type NibbleArray []byte

// NewNibbleArray создаёт массив на n значений
func NewNibbleArray(n int) NibbleArray {
	return make(NibbleArray, (n+1)/2)
}

// Len возвращает число хранимых значений
func (a NibbleArray) Len() int {
	return len(a) * 2
}

// Get возвращает значение по индексу
func (a NibbleArray) Get(i int) byte {
	b := a[i>>1]
	if i&1 == 0 {
		return b & 0x0F
	}
	return b >> 4
}

// Set записывает значение по индексу, старшие биты v отбрасываются
func (a NibbleArray) Set(i int, v byte) {
	j := i >> 1
	if i&1 == 0 {
		a[j] = (a[j] & 0xF0) | (v & 0x0F)
	} else {
		a[j] = (a[j] & 0x0F) | (v << 4)
	}
}

// Fill заполняет весь массив одним значением
func (a NibbleArray) Fill(v byte) {
	packed := (v & 0x0F) | (v << 4)
	for i := range a {
		a[i] = packed
	}
}

// Clone возвращает независимую копию
func (a NibbleArray) Clone() NibbleArray {
	out := make(NibbleArray, len(a))
	copy(out, a)
	return out
}
