package calorie

// Food is one row of the lookup table. Kcal is per serving, ServingGrams is
// the weight (or volume in ml) of that serving.
type Food struct {
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases,omitempty"`
	Unit         string   `json:"unit"`
	ServingGrams float64  `json:"serving_grams"`
	Kcal         float64  `json:"kcal"`
}

// DefaultFoods is the built-in table of common everyday foods.
var DefaultFoods = []Food{
	// Staples
	{Name: "米饭", Aliases: []string{"白米饭", "rice"}, Unit: "碗", ServingGrams: 200, Kcal: 230},
	{Name: "粥", Aliases: []string{"稀饭", "porridge", "congee"}, Unit: "碗", ServingGrams: 250, Kcal: 90},
	{Name: "馒头", Aliases: []string{"steamed bun", "steamed buns"}, Unit: "个", ServingGrams: 100, Kcal: 220},
	{Name: "包子", Aliases: []string{"baozi"}, Unit: "个", ServingGrams: 80, Kcal: 180},
	{Name: "面条", Aliases: []string{"拉面", "noodles"}, Unit: "碗", ServingGrams: 250, Kcal: 280},
	{Name: "牛肉面", Aliases: []string{"beef noodles"}, Unit: "碗", ServingGrams: 500, Kcal: 500},
	{Name: "饺子", Aliases: []string{"水饺", "dumpling", "dumplings"}, Unit: "个", ServingGrams: 20, Kcal: 40},
	{Name: "面包", Aliases: []string{"吐司", "bread", "toast"}, Unit: "片", ServingGrams: 30, Kcal: 80},
	{Name: "玉米", Aliases: []string{"corn"}, Unit: "根", ServingGrams: 200, Kcal: 90},
	{Name: "土豆", Aliases: []string{"马铃薯", "potato", "potatoes"}, Unit: "个", ServingGrams: 200, Kcal: 160},
	{Name: "红薯", Aliases: []string{"地瓜", "sweet potato", "sweet potatoes"}, Unit: "个", ServingGrams: 150, Kcal: 130},

	// Protein
	{Name: "鸡蛋", Aliases: []string{"煮鸡蛋", "egg", "eggs"}, Unit: "个", ServingGrams: 50, Kcal: 78},
	{Name: "鸡胸肉", Aliases: []string{"chicken breast"}, Unit: "份", ServingGrams: 100, Kcal: 165},
	{Name: "牛肉", Aliases: []string{"beef"}, Unit: "份", ServingGrams: 100, Kcal: 250},
	{Name: "猪肉", Aliases: []string{"pork"}, Unit: "份", ServingGrams: 100, Kcal: 300},
	{Name: "鱼", Aliases: []string{"fish"}, Unit: "份", ServingGrams: 100, Kcal: 200},
	{Name: "豆腐", Aliases: []string{"tofu"}, Unit: "份", ServingGrams: 100, Kcal: 80},

	// Drinks
	{Name: "牛奶", Aliases: []string{"milk"}, Unit: "杯", ServingGrams: 250, Kcal: 150},
	{Name: "酸奶", Aliases: []string{"yogurt", "yoghurt"}, Unit: "杯", ServingGrams: 200, Kcal: 120},
	{Name: "豆浆", Aliases: []string{"soy milk"}, Unit: "杯", ServingGrams: 250, Kcal: 80},
	{Name: "可乐", Aliases: []string{"cola", "coke"}, Unit: "罐", ServingGrams: 330, Kcal: 140},
	{Name: "咖啡", Aliases: []string{"coffee"}, Unit: "杯", ServingGrams: 250, Kcal: 5},

	// Fruit, vegetables, snacks
	{Name: "苹果", Aliases: []string{"apple", "apples"}, Unit: "个", ServingGrams: 180, Kcal: 95},
	{Name: "香蕉", Aliases: []string{"banana", "bananas"}, Unit: "根", ServingGrams: 120, Kcal: 105},
	{Name: "橙子", Aliases: []string{"orange", "oranges"}, Unit: "个", ServingGrams: 150, Kcal: 62},
	{Name: "青菜", Aliases: []string{"蔬菜", "vegetables", "greens"}, Unit: "份", ServingGrams: 200, Kcal: 50},
	{Name: "蛋糕", Aliases: []string{"cake"}, Unit: "块", ServingGrams: 100, Kcal: 350},
	{Name: "坚果", Aliases: []string{"nuts"}, Unit: "把", ServingGrams: 30, Kcal: 170},
}
