// Package calorie estimates meal calories from free-text descriptions such as
// "米饭, 2个鸡蛋, 一杯牛奶" by matching each comma-separated ingredient against a
// static food table. Ingredients that match nothing count as zero.
package calorie

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/width"
)

// Item is the estimate for one ingredient of a meal.
type Item struct {
	Text           string  `json:"text"`
	Food           string  `json:"food,omitempty"`
	Matched        bool    `json:"matched"`
	Quantity       float64 `json:"quantity"`
	KcalPerServing float64 `json:"kcal_per_serving"`
	Kcal           float64 `json:"kcal"`
}

// Estimate is the result for a whole meal description.
type Estimate struct {
	TotalKcal int    `json:"total_kcal"`
	Items     []Item `json:"items"`
}

type matcher struct {
	alias  string
	length int
	food   *Food
	// re is set for ASCII aliases, which must match on word boundaries.
	re *regexp.Regexp
}

// Estimator matches meal text against a food table. It is safe for
// concurrent use.
type Estimator struct {
	foods    []Food
	matchers []matcher
	cache    *lru.Cache[string, Estimate]
}

var (
	separatorRe = regexp.MustCompile(`[,、;+/\n]+`)
	weightRe    = regexp.MustCompile(`(\d+(?:\.\d+)?|半|[零一二两三四五六七八九十]+)\s*(?:(kilograms?|kg|grams?|g|milliliters?|millilitres?|ml|liters?|litres?|l)\b|(千克|公斤|毫升|克|斤|升))`)
	fractionRe  = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	numberRe    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	cnNumberRe  = regexp.MustCompile(`(半|[零一二两三四五六七八九十]+)\s*(?:个|碗|杯|片|根|块|份|把|罐|只|张|勺|盘|串|盒|瓶|条|颗|粒)`)

	defaultOnce      sync.Once
	defaultEstimator *Estimator
)

const DefaultCacheSize = 512

// MaxQuantity caps the servings counted for a single ingredient.
const MaxQuantity = 100

// gramsPerUnit converts weight and volume units to grams. Volumes are
// treated as 1 g/ml.
var gramsPerUnit = map[string]float64{
	"g": 1, "gram": 1, "grams": 1, "克": 1,
	"kg": 1000, "kilogram": 1000, "kilograms": 1000, "千克": 1000, "公斤": 1000,
	"斤": 500,
	"ml": 1, "milliliter": 1, "milliliters": 1, "millilitre": 1, "millilitres": 1, "毫升": 1,
	"l": 1000, "liter": 1000, "liters": 1000, "litre": 1000, "litres": 1000, "升": 1000,
}

// NewEstimator builds an estimator over foods, caching up to cacheSize results.
func NewEstimator(foods []Food, cacheSize int) (*Estimator, error) {
	cache, err := lru.New[string, Estimate](cacheSize)
	if err != nil {
		return nil, err
	}

	e := &Estimator{
		foods: append([]Food(nil), foods...),
		cache: cache,
	}

	for i := range e.foods {
		f := &e.foods[i]
		for _, name := range append([]string{f.Name}, f.Aliases...) {
			alias := strings.ToLower(strings.TrimSpace(name))
			if alias == "" {
				continue
			}
			m := matcher{alias: alias, length: utf8.RuneCountInString(alias), food: f}
			if isASCII(alias) {
				m.re = regexp.MustCompile(`\b` + regexp.QuoteMeta(alias) + `\b`)
			}
			e.matchers = append(e.matchers, m)
		}
	}

	// Longest names first so "soy milk" wins over "milk" and "牛肉面" over "牛肉".
	sort.SliceStable(e.matchers, func(i, j int) bool {
		return e.matchers[i].length > e.matchers[j].length
	})

	return e, nil
}

// Default returns the process-wide estimator over DefaultFoods.
func Default() *Estimator {
	defaultOnce.Do(func() {
		e, err := NewEstimator(DefaultFoods, DefaultCacheSize)
		if err != nil {
			panic(err)
		}
		defaultEstimator = e
	})
	return defaultEstimator
}

// InitDefault replaces the process-wide estimator with one caching up to
// cacheSize results. Call it once at startup, before serving requests.
func InitDefault(cacheSize int) error {
	e, err := NewEstimator(DefaultFoods, cacheSize)
	if err != nil {
		return err
	}
	defaultOnce.Do(func() {})
	defaultEstimator = e
	return nil
}

// Foods returns a copy of the lookup table in table order.
func (e *Estimator) Foods() []Food {
	return append([]Food(nil), e.foods...)
}

// Estimate returns the calorie estimate for a free-text meal description.
func (e *Estimator) Estimate(text string) Estimate {
	normalized := normalize(text)
	if normalized == "" {
		return Estimate{Items: []Item{}}
	}

	if cached, ok := e.cache.Get(normalized); ok {
		return cached.clone()
	}

	result := Estimate{Items: []Item{}}
	var total float64
	for _, token := range separatorRe.Split(normalized, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		item := e.estimateItem(token)
		total += item.Kcal
		result.Items = append(result.Items, item)
	}
	result.TotalKcal = int(math.Round(math.Min(total, math.MaxInt32)))

	e.cache.Add(normalized, result)
	return result.clone()
}

func (e *Estimator) estimateItem(token string) Item {
	item := Item{Text: token}

	food := e.match(token)
	if food == nil {
		return item
	}

	item.Food = food.Name
	item.Matched = true
	item.KcalPerServing = food.Kcal
	item.Quantity = math.Min(quantity(token, food), MaxQuantity)
	item.Kcal = item.Quantity * food.Kcal
	return item
}

func (e *Estimator) match(token string) *Food {
	for _, m := range e.matchers {
		if m.re != nil {
			if m.re.MatchString(token) {
				return m.food
			}
			continue
		}
		if strings.Contains(token, m.alias) {
			return m.food
		}
	}
	return nil
}

// quantity extracts the number of servings from a token. Weights and volumes
// are converted through the food's serving size; otherwise the first number
// (Arabic, or Chinese followed by a measure word) counts servings.
func quantity(token string, food *Food) float64 {
	if m := weightRe.FindStringSubmatch(token); m != nil && food.ServingGrams > 0 {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			amount = parseChineseNumber(m[1])
		}
		return amount * gramsPerUnit[m[2]+m[3]] / food.ServingGrams
	}
	if m := numberRe.FindString(token); m != "" {
		if n, err := strconv.ParseFloat(m, 64); err == nil {
			return n
		}
	}
	if m := cnNumberRe.FindStringSubmatch(token); m != nil {
		return parseChineseNumber(m[1])
	}
	return 1
}

var chineseDigits = map[rune]float64{
	'零': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// parseChineseNumber handles 半 and numerals up to 九十九 (十二, 二十, 二十五).
func parseChineseNumber(s string) float64 {
	if s == "半" {
		return 0.5
	}
	var total, current float64
	for _, r := range s {
		if r == '十' {
			if current == 0 {
				current = 1
			}
			total += current * 10
			current = 0
			continue
		}
		current = chineseDigits[r]
	}
	return total + current
}

// normalize folds full-width forms, lower-cases, and rewrites fractions such
// as 1/2 to decimals so the "/" separator does not split them.
func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(width.Fold.String(text)))
	return fractionRe.ReplaceAllStringFunc(text, func(frac string) string {
		m := fractionRe.FindStringSubmatch(frac)
		num, err1 := strconv.ParseFloat(m[1], 64)
		den, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil || den == 0 {
			return frac
		}
		return strconv.FormatFloat(num/den, 'f', -1, 64)
	})
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func (e Estimate) clone() Estimate {
	e.Items = append([]Item{}, e.Items...)
	return e
}
