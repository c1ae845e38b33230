package garment

import "stylist/internal/domain"

// Rule binds a garment category to its detection keywords and priority.
// Lower priority sorts first; one-piece garments outrank everything else.
type Rule struct {
	Category domain.Category
	Priority int
	Keywords []string
}

// DefaultTaxonomy returns the fixed taxonomy used by the classifier. Keyword
// order within a rule decides which keyword supplies the hint phrase when
// several match, so it must stay stable.
func DefaultTaxonomy() []Rule {
	return []Rule{
		{
			Category: domain.CategoryOnePiece,
			Priority: 1,
			Keywords: []string{"dress", "sundress", "gown", "jumpsuit", "romper", "overall", "onesie"},
		},
		{
			Category: domain.CategoryTops,
			Priority: 2,
			Keywords: []string{"shirt", "t-shirt", "tee", "blouse", "top", "sweater", "hoodie", "tank", "polo", "turtleneck"},
		},
		{
			Category: domain.CategoryBottoms,
			Priority: 3,
			Keywords: []string{"pants", "jeans", "trousers", "skirt", "shorts", "leggings", "chinos", "joggers"},
		},
		{
			Category: domain.CategoryOuterwear,
			Priority: 4,
			Keywords: []string{"jacket", "coat", "blazer", "cardigan", "parka", "trench", "windbreaker", "vest"},
		},
		{
			Category: domain.CategoryFootwear,
			Priority: 5,
			Keywords: []string{"shoes", "sneakers", "boots", "heels", "sandals", "loafers", "flats", "slippers"},
		},
		{
			Category: domain.CategoryAccessories,
			Priority: 6,
			Keywords: []string{"hat", "cap", "bag", "purse", "scarf", "belt", "necklace", "bracelet", "earrings", "sunglasses", "gloves", "watch"},
		},
	}
}
