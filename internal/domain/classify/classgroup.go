package classify

import (
	"strings"

	"github.com/okian/hpde-analytics/internal/domain/model"
)

// classTable maps normalized Time Trials class codes to their group.
// Codes are compared after lowercasing and dropping spaces, dashes and
// underscores, so "Max 5", "max-5" and "MAX_5" are the same code.
var classTable = map[string]model.ClassGroup{ //nolint:gochecknoglobals // static lookup table
	"max": model.ClassGroupMax, "max1": model.ClassGroupMax, "max2": model.ClassGroupMax,
	"max3": model.ClassGroupMax, "max4": model.ClassGroupMax, "max5": model.ClassGroupMax,
	"max6": model.ClassGroupMax,

	"sport": model.ClassGroupSport, "sport1": model.ClassGroupSport, "sport2": model.ClassGroupSport,
	"sport3": model.ClassGroupSport, "sport4": model.ClassGroupSport, "sport5": model.ClassGroupSport,
	"sport6": model.ClassGroupSport,

	"tuner": model.ClassGroupTuner, "tuner1": model.ClassGroupTuner, "tuner2": model.ClassGroupTuner,
	"tuner3": model.ClassGroupTuner, "tuner4": model.ClassGroupTuner, "tuner5": model.ClassGroupTuner,
	"tuner6": model.ClassGroupTuner,

	"unlimited": model.ClassGroupUnlimited, "unlimited1": model.ClassGroupUnlimited,
	"unlimited2": model.ClassGroupUnlimited, "unlimited3": model.ClassGroupUnlimited,
	"unlimited4": model.ClassGroupUnlimited, "unlimited5": model.ClassGroupUnlimited,
	"unlimited6": model.ClassGroupUnlimited,
}

var codeReplacer = strings.NewReplacer(" ", "", "-", "", "_", "", "\t", "") //nolint:gochecknoglobals // stateless

// ClassGroupFor maps a raw class code to its group. known is false for
// codes missing from the table, which map to ClassGroupUnknown.
func ClassGroupFor(code string) (group model.ClassGroup, known bool) {
	norm := codeReplacer.Replace(strings.ToLower(strings.TrimSpace(code)))
	if g, ok := classTable[norm]; ok {
		return g, true
	}
	return model.ClassGroupUnknown, false
}
