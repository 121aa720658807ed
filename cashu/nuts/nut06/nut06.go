// Package nut06 contains structs as defined in [NUT-06]
//
// [NUT-06]: https://github.com/cashubtc/nuts/blob/main/06.md
package nut06

type MintInfo struct {
	Name        string `json:"name"`
	Pubkey      string `json:"pubkey"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Motd        string `json:"motd,omitempty"`
	Time        int64  `json:"time,omitempty"`
	Nuts        Nuts   `json:"nuts"`
}

type NutSetting struct {
	Methods  []MethodSetting `json:"methods"`
	Disabled bool            `json:"disabled"`
}

type MethodSetting struct {
	Method    string `json:"method"`
	Unit      string `json:"unit"`
	MinAmount uint64 `json:"min_amount,omitempty"`
	MaxAmount uint64 `json:"max_amount,omitempty"`
}

type Nuts struct {
	Nut05 NutSetting `json:"5"`
}

// SupportsBolt11Melt reports whether the mint advertises melting
// bolt11 payment requests for the given unit.
func (mi *MintInfo) SupportsBolt11Melt(unit string) bool {
	if mi.Nuts.Nut05.Disabled {
		return false
	}
	for _, method := range mi.Nuts.Nut05.Methods {
		if method.Method == "bolt11" && method.Unit == unit {
			return true
		}
	}
	return false
}
