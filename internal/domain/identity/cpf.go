package identity

import "strings"

var cpfFormatting = strings.NewReplacer(".", "", "-", "", " ", "")

// NormalizeCPF strips the usual formatting from a CPF and checks that the
// result has 11 digits with valid check digits. It returns the bare digits.
func NormalizeCPF(raw string) (string, bool) {
	s := cpfFormatting.Replace(strings.TrimSpace(raw))
	if len(s) != 11 {
		return "", false
	}

	var d [11]int
	allSame := true
	for i := 0; i < 11; i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
		d[i] = int(s[i] - '0')
		if d[i] != d[0] {
			allSame = false
		}
	}
	// 000.000.000-00, 111.111.111-11 and so on pass the checksum but are
	// not issued.
	if allSame {
		return "", false
	}

	if cpfCheckDigit(d[:9]) != d[9] || cpfCheckDigit(d[:10]) != d[10] {
		return "", false
	}
	return s, true
}

func cpfCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, v := range digits {
		sum += v * weight
		weight--
	}
	r := sum * 10 % 11
	if r == 10 {
		return 0
	}
	return r
}

// FormatCPF renders 11 bare digits as 000.000.000-00.
func FormatCPF(cpf string) string {
	if len(cpf) != 11 {
		return cpf
	}
	return cpf[:3] + "." + cpf[3:6] + "." + cpf[6:9] + "-" + cpf[9:]
}

// GenerateCPF completes a 9-digit base with its two check digits.
func GenerateCPF(base [9]int) string {
	digits := make([]int, 0, 11)
	digits = append(digits, base[:]...)
	digits = append(digits, cpfCheckDigit(digits))
	digits = append(digits, cpfCheckDigit(digits))

	var b strings.Builder
	for _, v := range digits {
		b.WriteByte(byte('0' + v))
	}
	return b.String()
}
