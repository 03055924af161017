package chromosome

import (
	"fmt"
	"strconv"
	"strings"
)

func ValidListOfHumanChromosomes() []string {
	var humChroms []string
	for i := 1; i < 23; i++ {
		humChroms = append(humChroms, fmt.Sprint(i))
	}
	humChroms = append(humChroms, "X")
	humChroms = append(humChroms, "Y")
	humChroms = append(humChroms, "MT")
	return humChroms
}

// Normalize strips an optional `chr` prefix, upper-cases
// the remainder and maps `M` onto `MT`
func Normalize(text string) string {
	chrom := strings.TrimSpace(text)
	if len(chrom) >= 3 && strings.EqualFold(chrom[:3], "chr") {
		chrom = chrom[3:]
	}
	chrom = strings.ToUpper(chrom)
	if chrom == "M" {
		chrom = "MT"
	}
	return chrom
}

func IsValidHumanChromosome(text string) bool {
	chrom := Normalize(text)

	// Check if number can be represented as an int in range 1-22
	if chromNumber, err := strconv.Atoi(chrom); err == nil {
		return chromNumber > 0 && chromNumber < 23 && !strings.HasPrefix(chrom, "0")
	}

	switch chrom {
	case "X", "Y", "MT":
		return true
	}
	return false
}
