package power

// route describes how one output name maps onto the hardware: which
// expander chip and bit position switch it, and which ADC chip and channels
// sense its voltage and current.
type route struct {
	expander int // 1 or 2
	bit      int // position 1-16 within the expander bitmap
	chip     int // ADC chip behind the decoder, 0-7
	vchan    int // voltage input channel on that chip
	ichan    int // current input channel on that chip
}

// routes is the wiring table for the digital board. The bank-letter to
// expander-chip coupling lives here as data; a hardware revision means a
// table edit, never a code branch on the name.
var routes = map[string]route{
	"A1": {2, 10, 7, 0, 1},
	"A2": {2, 9, 7, 2, 3},
	"A3": {2, 2, 6, 0, 1},
	"A4": {2, 1, 6, 2, 3},
	"A5": {1, 10, 5, 0, 1},
	"A6": {1, 9, 5, 2, 3},
	"A7": {1, 2, 4, 0, 1},
	"A8": {1, 1, 4, 2, 3},

	"B1": {2, 12, 7, 4, 5},
	"B2": {2, 11, 7, 6, 7},
	"B3": {2, 4, 6, 4, 5},
	"B4": {2, 3, 6, 6, 7},
	"B5": {1, 12, 5, 4, 5},
	"B6": {1, 11, 5, 6, 7},
	"B7": {1, 4, 4, 4, 5},
	"B8": {1, 3, 4, 6, 7},

	"C1": {2, 14, 0, 0, 1},
	"C2": {2, 13, 0, 2, 3},
	"C3": {2, 6, 1, 0, 1},
	"C4": {2, 5, 1, 2, 3},
	"C5": {1, 14, 2, 0, 1},
	"C6": {1, 13, 2, 2, 3},
	"C7": {1, 6, 3, 0, 1},
	"C8": {1, 5, 3, 2, 3},

	"D1": {2, 16, 0, 4, 5},
	"D2": {2, 15, 0, 6, 7},
	"D3": {2, 8, 1, 4, 5},
	"D4": {2, 7, 1, 6, 7},
	"D5": {1, 16, 2, 4, 5},
	"D6": {1, 15, 2, 6, 7},
	"D7": {1, 8, 3, 4, 5},
	"D8": {1, 7, 3, 6, 7},
}
