package admission

import "strconv"

// Money is an amount of yen. JPY has no minor unit, so the integer is the
// price itself; DB columns are plain INTEGER.
type Money int64

func (m Money) String() string { return "¥" + strconv.FormatInt(int64(m), 10) }
