package geo

import "strings"

// 郊区与主要城市坐标表，键为小写名称。
var suburbs = map[string]Point{
	// capitals
	"sydney":    {-33.8688, 151.2093},
	"melbourne": {-37.8136, 144.9631},
	"brisbane":  {-27.4698, 153.0251},
	"perth":     {-31.9505, 115.8605},
	"adelaide":  {-34.9285, 138.6007},
	"hobart":    {-42.8821, 147.3272},
	"darwin":    {-12.4634, 130.8456},
	"canberra":  {-35.2809, 149.1300},

	// adelaide metro
	"adelaide cbd":    {-34.9285, 138.6007},
	"north adelaide":  {-34.9065, 138.5934},
	"kent town":       {-34.9206, 138.6201},
	"norwood":         {-34.9206, 138.6326},
	"kensington":      {-34.9211, 138.6453},
	"burnside":        {-34.9397, 138.6444},
	"glen osmond":     {-34.9556, 138.6339},
	"stirling":        {-35.0006, 138.7158},
	"thebarton":       {-34.9167, 138.5700},
	"torrensville":    {-34.9192, 138.5611},
	"henley beach":    {-34.9167, 138.4933},
	"west lakes":      {-34.8667, 138.4917},
	"prospect":        {-34.8833, 138.5950},
	"glenelg":         {-34.9800, 138.5150},
	"marion":          {-35.0167, 138.5500},
	"unley":           {-34.9500, 138.6000},
	"mawson lakes":    {-34.8150, 138.6100},
	"salisbury":       {-34.7583, 138.6417},
	"elizabeth":       {-34.7167, 138.6667},
	"modbury":         {-34.8333, 138.6833},
	"tea tree gully":  {-34.8167, 138.7167},
	"noarlunga":       {-35.1400, 138.4950},
	"port adelaide":   {-34.8467, 138.5033},

	// sydney metro
	"sydney cbd":   {-33.8688, 151.2093},
	"parramatta":   {-33.8150, 151.0011},
	"chatswood":    {-33.7969, 151.1803},
	"bondi":        {-33.8915, 151.2767},
	"penrith":      {-33.7507, 150.6877},
	"liverpool":    {-33.9200, 150.9230},

	// melbourne metro
	"melbourne cbd": {-37.8136, 144.9631},
	"richmond":      {-37.8230, 144.9980},
	"st kilda":      {-37.8676, 144.9809},
	"geelong":       {-38.1499, 144.3617},
}

// 州缩写到首府，用于兜底。
var stateCapitals = map[string]string{
	"NSW": "sydney",
	"VIC": "melbourne",
	"QLD": "brisbane",
	"WA":  "perth",
	"SA":  "adelaide",
	"TAS": "hobart",
	"NT":  "darwin",
	"ACT": "canberra",
}

// LookupSuburb 按名称查找郊区坐标，忽略大小写与多余空格。
func LookupSuburb(name string) (Point, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if key == "" {
		return Point{}, false
	}
	p, ok := suburbs[key]
	return p, ok
}

// LookupState 返回州首府坐标。
func LookupState(state string) (Point, bool) {
	city, ok := stateCapitals[strings.ToUpper(strings.TrimSpace(state))]
	if !ok {
		return Point{}, false
	}
	return suburbs[city], true
}

// LookupFreeText 从 "Sydney CBD, NSW" 这类自由文本中解析坐标。
func LookupFreeText(location string) (Point, bool) {
	for _, part := range strings.Split(location, ",") {
		if p, ok := LookupSuburb(part); ok {
			return p, true
		}
	}
	parts := strings.Split(location, ",")
	if len(parts) > 1 {
		last := strings.Fields(parts[len(parts)-1])
		if len(last) > 0 {
			return LookupState(last[0])
		}
	}
	return Point{}, false
}
