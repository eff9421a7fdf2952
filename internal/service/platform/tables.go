package platform

// Canonical platform names. These double as the display value persisted on resolved records.
const (
	PC            = "PC"
	Switch2       = "Nintendo Switch 2"
	PS5           = "PlayStation 5"
	XboxSeries    = "Xbox Series X"
	PS4           = "PlayStation 4"
	XboxOne       = "Xbox One"
	Switch        = "Nintendo Switch"
	PS3           = "PlayStation 3"
	Xbox360       = "Xbox 360"
	WiiU          = "Wii U"
	PS2           = "PlayStation 2"
	Wii           = "Wii"
	PS1           = "PlayStation"
	Xbox          = "Xbox"
	N3DS          = "Nintendo 3DS"
	GBA           = "Game Boy Advance"
	Vita          = "PlayStation Vita"
	PSP           = "PSP"
	NDS           = "Nintendo DS"
	GameCube      = "GameCube"
	N64           = "Nintendo 64"
	IOS           = "iOS"
	Android       = "Android"
	Dreamcast     = "Dreamcast"
	Stadia        = "Stadia"
	Mac           = "Mac"
	Linux         = "Linux"
	DefaultTarget = PC
)

type member struct {
	canonical string
	synonyms  []string
}

// priorityGroups is scanned top to bottom; the first group holding any of a record's
// platforms wins. Inside a group, members are checked in listed order.
var priorityGroups = [][]member{
	{{PC, []string{"PC", "Windows", "Win", "PC (Microsoft Windows)", "Microsoft Windows"}}},
	{{Switch2, []string{"Nintendo Switch 2", "Switch 2", "NSW2"}}},
	{{PS5, []string{"PlayStation 5", "PS5"}}},
	{{XboxSeries, []string{"Xbox Series X", "Xbox Series S", "Xbox Series X|S", "XSX", "XSS"}}},
	{{PS4, []string{"PlayStation 4", "PS4"}}},
	{{XboxOne, []string{"Xbox One", "XONE", "XB1"}}},
	{{Switch, []string{"Nintendo Switch", "Switch", "NSW"}}},
	{{PS3, []string{"PlayStation 3", "PS3"}}},
	{{Xbox360, []string{"Xbox 360", "X360"}}},
	{{WiiU, []string{"Wii U", "WiiU"}}},
	{{PS2, []string{"PlayStation 2", "PS2"}}},
	{{Wii, []string{"Wii"}}},
	{{PS1, []string{"PlayStation", "PS1", "PSX"}}},
	{{Xbox, []string{"Xbox"}}},
	{
		{N3DS, []string{"Nintendo 3DS", "3DS", "New Nintendo 3DS"}},
		{GBA, []string{"Game Boy Advance", "GBA"}},
		{Vita, []string{"PlayStation Vita", "PS Vita", "PSV", "Vita"}},
		{PSP, []string{"PSP", "PlayStation Portable"}},
	},
	{
		{NDS, []string{"Nintendo DS", "DS", "NDS"}},
		{GameCube, []string{"GameCube", "Nintendo GameCube", "GC", "NGC"}},
		{N64, []string{"Nintendo 64", "N64"}},
	},
	{{IOS, []string{"iOS", "iPhone", "iPad"}}},
	{
		{Android, []string{"Android"}},
		{Dreamcast, []string{"Dreamcast", "DC"}},
		{Stadia, []string{"Stadia", "Google Stadia"}},
		{Mac, []string{"Mac", "macOS", "Apple Macintosh", "OS X"}},
		{Linux, []string{"Linux"}},
	},
}

// IGDB platform ids seen in catalog dumps.
var platformIDs = map[int]string{
	6:   PC,
	508: Switch2,
	167: PS5,
	169: XboxSeries,
	48:  PS4,
	49:  XboxOne,
	130: Switch,
	9:   PS3,
	12:  Xbox360,
	41:  WiiU,
	8:   PS2,
	5:   Wii,
	7:   PS1,
	11:  Xbox,
	37:  N3DS,
	24:  GBA,
	46:  Vita,
	38:  PSP,
	20:  NDS,
	21:  GameCube,
	4:   N64,
	39:  IOS,
	34:  Android,
	23:  Dreamcast,
	170: Stadia,
	14:  Mac,
	3:   Linux,
}

// Slugs that do not survive key normalization unambiguously.
var platformSlugs = map[string]string{
	"pc":              PC,
	"win":             PC,
	"windows":         PC,
	"ps4":             PS4,
	"playstation4":    PS4,
	"ps5":             PS5,
	"playstation5":    PS5,
	"xboxone":         XboxOne,
	"xbox-one":        XboxOne,
	"xboxseriesx":     XboxSeries,
	"xbox-series-x":   XboxSeries,
	"series-x":        XboxSeries,
	"switch":          Switch,
	"nintendo-switch": Switch,
	"switch-2":        Switch2,
	"ps":              PS1,
	"3ds":             N3DS,
	"ds":              NDS,
	"ngc":             GameCube,
	"n64":             N64,
	"psvita":          Vita,
	"mac":             Mac,
	"linux":           Linux,
}

var previousGeneration = map[string]string{
	PS5:        PS4,
	XboxSeries: XboxOne,
}
