package builder

import "github.com/JakeFAU/appcatalog/internal/catalog"

// GameGenres are the games category and its sub-genres.
var GameGenres = []int{
	7001, 7002, 7003, 7004, 7005, 7006, 7009, 7011,
	7012, 7013, 7014, 7015, 7016, 7017, 7018, 7019,
	6014,
}

// OtherGenres are the non-game top-level categories.
var OtherGenres = []int{
	6018, 6000, 6022, 6026, 6017, 6016, 6015, 6023,
	6027, 6013, 6012, 6021, 6020, 6011, 6010, 6009,
	6008, 6007, 6006, 6024, 6005, 6004, 6003, 6002,
	6001,
}

// SupplementGenres are the general categories added to games in supplement mode:
// Entertainment, Social Networking, Photo & Video, Productivity and Utilities.
var SupplementGenres = []int{6016, 6005, 6008, 6007, 6002}

// FeedTuple is one fixed (genre, limit, ranking) feed used by builtin mode.
type FeedTuple struct {
	Genre   int
	Limit   int
	Ranking catalog.Ranking
}

// BuiltinFeeds are fetched for every builtin country, in order.
var BuiltinFeeds = []FeedTuple{
	{Genre: 36, Limit: 200, Ranking: catalog.RankingTopFree},
	{Genre: 36, Limit: 200, Ranking: catalog.RankingTopPaid},
	{Genre: 36, Limit: 200, Ranking: catalog.RankingTopGrossing},
	{Genre: 6014, Limit: 200, Ranking: catalog.RankingTopFree},
	{Genre: 6014, Limit: 100, Ranking: catalog.RankingTopPaid},
	{Genre: 6014, Limit: 100, Ranking: catalog.RankingTopGrossing},
}

// BuiltinCountries are the storefronts visited by builtin mode, in order.
var BuiltinCountries = []string{
	"us", "jp", "gb", "cn", "kr", "de", "fr", "ca", "au", "tw",
	"hk", "br", "mx", "es", "it", "ru", "in", "id", "th", "vn",
	"ph", "my", "sg", "nl", "se", "no", "dk", "fi", "ch", "at",
	"be", "pl", "tr", "sa", "ae", "il", "za", "ar", "cl", "co",
	"nz", "ie", "pt", "cz", "hu", "ro", "gr", "ua", "eg", "ng",
}

// AllGenres returns games followed by the other categories.
func AllGenres() []int {
	out := make([]int, 0, len(GameGenres)+len(OtherGenres))
	out = append(out, GameGenres...)
	return append(out, OtherGenres...)
}

// SupplementSet returns games followed by the supplement categories.
func SupplementSet() []int {
	out := make([]int, 0, len(GameGenres)+len(SupplementGenres))
	out = append(out, GameGenres...)
	return append(out, SupplementGenres...)
}
