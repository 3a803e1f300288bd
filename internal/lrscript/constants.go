package lrscript

const (
	MarkerExtraRes = "EXTRARES"
	MarkerItemData = "ITEMDATA"
	MarkerLast     = "LAST"
	MarkerEndItem  = "ENDITEM"
)

// sectionTerminators end a bounded section; the earliest one present wins.
var sectionTerminators = []string{MarkerExtraRes, MarkerItemData, MarkerLast}

const (
	defaultLeft  = "{"
	defaultRight = "}"
	templateOpen = "${"
	templateEnd  = "}"
)

// forbiddenNameChars are replaced by '_' in derived identifiers.
const forbiddenNameChars = "£\u0080€$\"[]<>|*¤?§µ#`@^²°¨\\"

var restrictedBoundaryOptions = map[string]struct{}{
	"BIN":     {},
	"DIG":     {},
	"ALNUMIC": {},
	"ALNUMLC": {},
	"ALNUMUC": {},
}
