package catalog

import (
	"fmt"

	"github.com/campusflow/campus-flow-api/model"
)

// SemestersPerYear is TotalSemesters when set and positive, else the default of two
func SemestersPerYear(totalSemesters *int) int {
	if totalSemesters != nil && *totalSemesters > 0 {
		return *totalSemesters
	}
	return model.DefaultSemestersPerYear
}

// SemesterNumbers returns (n-1)*k+1 .. (n-1)*k+k for year n with k semesters per year
func SemesterNumbers(yearNumber int, totalSemesters *int) []int {
	if yearNumber < 1 {
		return nil
	}
	k := SemestersPerYear(totalSemesters)
	first := (yearNumber-1)*k + 1
	out := make([]int, k)
	for i := range out {
		out[i] = first + i
	}
	return out
}

func SemesterLabel(n int) string {
	return fmt.Sprintf("Semester %d", n)
}

func SemesterLabels(yearNumber int, totalSemesters *int) []string {
	numbers := SemesterNumbers(yearNumber, totalSemesters)
	labels := make([]string, len(numbers))
	for i, n := range numbers {
		labels[i] = SemesterLabel(n)
	}
	return labels
}
