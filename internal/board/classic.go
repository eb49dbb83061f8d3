// internal/board/classic.go
package board

// Classic group ids.
const (
	GroupBrown     = "brown"
	GroupLightBlue = "lightblue"
	GroupPink      = "pink"
	GroupOrange    = "orange"
	GroupRed       = "red"
	GroupYellow    = "yellow"
	GroupGreen     = "green"
	GroupDarkBlue  = "darkblue"
	GroupRailroad  = "railroad"
	GroupUtility   = "utility"
)

func prop(pos int, name, group string, price, house int, rent ...int) Square {
	return Square{ID: pos, Position: pos, Name: name, Type: TypeProperty, Group: group, Price: price, HouseCost: house, Rent: rent}
}

func railroad(pos int, name string) Square {
	return Square{ID: pos, Position: pos, Name: name, Type: TypeRailroad, Group: GroupRailroad, Price: 200, Rent: []int{25, 50, 100, 200}}
}

func utility(pos int, name string) Square {
	return Square{ID: pos, Position: pos, Name: name, Type: TypeUtility, Group: GroupUtility, Price: 150, Rent: []int{4, 10}}
}

func plain(pos int, name string, t SquareType) Square {
	return Square{ID: pos, Position: pos, Name: name, Type: t}
}

func corner(pos int, name string, k CornerKind) Square {
	return Square{ID: pos, Position: pos, Name: name, Type: TypeCorner, Corner: k}
}

func tax(pos int, name string, amount int) Square {
	return Square{ID: pos, Position: pos, Name: name, Type: TypeTax, Tax: amount}
}

// ClassicDefinition is the standard 40-square layout. Square ids equal positions.
func ClassicDefinition() Definition {
	return Definition{
		Name: "classic",
		Squares: []Square{
			corner(0, "Go", CornerGo),
			prop(1, "Mediterranean Avenue", GroupBrown, 60, 50, 2, 10, 30, 90, 160, 250),
			plain(2, "Community Chest", TypeCommunity),
			prop(3, "Baltic Avenue", GroupBrown, 60, 50, 4, 20, 60, 180, 320, 450),
			tax(4, "Income Tax", 200),
			railroad(5, "Reading Railroad"),
			prop(6, "Oriental Avenue", GroupLightBlue, 100, 50, 6, 30, 90, 270, 400, 550),
			plain(7, "Chance", TypeChance),
			prop(8, "Vermont Avenue", GroupLightBlue, 100, 50, 6, 30, 90, 270, 400, 550),
			prop(9, "Connecticut Avenue", GroupLightBlue, 120, 50, 8, 40, 100, 300, 450, 600),
			corner(10, "Jail", CornerJail),
			prop(11, "St. Charles Place", GroupPink, 140, 100, 10, 50, 150, 450, 625, 750),
			utility(12, "Electric Company"),
			prop(13, "States Avenue", GroupPink, 140, 100, 10, 50, 150, 450, 625, 750),
			prop(14, "Virginia Avenue", GroupPink, 160, 100, 12, 60, 180, 500, 700, 900),
			railroad(15, "Pennsylvania Railroad"),
			prop(16, "St. James Place", GroupOrange, 180, 100, 14, 70, 200, 550, 750, 950),
			plain(17, "Community Chest", TypeCommunity),
			prop(18, "Tennessee Avenue", GroupOrange, 180, 100, 14, 70, 200, 550, 750, 950),
			prop(19, "New York Avenue", GroupOrange, 200, 100, 16, 80, 220, 600, 800, 1000),
			corner(20, "Free Parking", CornerFreeParking),
			prop(21, "Kentucky Avenue", GroupRed, 220, 150, 18, 90, 250, 700, 875, 1050),
			plain(22, "Chance", TypeChance),
			prop(23, "Indiana Avenue", GroupRed, 220, 150, 18, 90, 250, 700, 875, 1050),
			prop(24, "Illinois Avenue", GroupRed, 240, 150, 20, 100, 300, 750, 925, 1100),
			railroad(25, "B&O Railroad"),
			prop(26, "Atlantic Avenue", GroupYellow, 260, 150, 22, 110, 330, 800, 975, 1150),
			prop(27, "Ventnor Avenue", GroupYellow, 260, 150, 22, 110, 330, 800, 975, 1150),
			utility(28, "Water Works"),
			prop(29, "Marvin Gardens", GroupYellow, 280, 150, 24, 120, 360, 850, 1025, 1200),
			corner(30, "Go To Jail", CornerGoToJail),
			prop(31, "Pacific Avenue", GroupGreen, 300, 200, 26, 130, 390, 900, 1100, 1275),
			prop(32, "North Carolina Avenue", GroupGreen, 300, 200, 26, 130, 390, 900, 1100, 1275),
			plain(33, "Community Chest", TypeCommunity),
			prop(34, "Pennsylvania Avenue", GroupGreen, 320, 200, 28, 150, 450, 1000, 1200, 1400),
			railroad(35, "Short Line"),
			plain(36, "Chance", TypeChance),
			prop(37, "Park Place", GroupDarkBlue, 350, 200, 35, 175, 500, 1100, 1300, 1500),
			tax(38, "Luxury Tax", 100),
			prop(39, "Boardwalk", GroupDarkBlue, 400, 200, 50, 200, 600, 1400, 1700, 2000),
		},
		Groups: []Group{
			{ID: GroupBrown, Name: "Brown", Members: []int{1, 3}},
			{ID: GroupLightBlue, Name: "Light Blue", Members: []int{6, 8, 9}},
			{ID: GroupPink, Name: "Pink", Members: []int{11, 13, 14}},
			{ID: GroupOrange, Name: "Orange", Members: []int{16, 18, 19}},
			{ID: GroupRed, Name: "Red", Members: []int{21, 23, 24}},
			{ID: GroupYellow, Name: "Yellow", Members: []int{26, 27, 29}},
			{ID: GroupGreen, Name: "Green", Members: []int{31, 32, 34}},
			{ID: GroupDarkBlue, Name: "Dark Blue", Members: []int{37, 39}},
			{ID: GroupRailroad, Name: "Railroads", Members: []int{5, 15, 25, 35}},
			{ID: GroupUtility, Name: "Utilities", Members: []int{12, 28}},
		},
	}
}

// Classic returns the validated classic board. It panics only if the built-in data is broken.
func Classic() *Board {
	b, err := New(ClassicDefinition())
	if err != nil {
		panic("classic board: " + err.Error())
	}
	return b
}
