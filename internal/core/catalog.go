package core

// DefaultCategories is the catalog seeded on every start. Seeding only
// inserts names that are missing.
func DefaultCategories() []Category {
	seed := []struct {
		name, emoji string
		kind        Kind
	}{
		{"Mercado", "🛒", KindExpense},
		{"Alimentação", "🍽️", KindExpense},
		{"Gasolina", "⛽", KindExpense},
		{"Transporte", "🚌", KindExpense},
		{"Carro", "🚗", KindExpense},
		{"Pet", "🐶", KindExpense},
		{"Saúde", "🩺", KindExpense},
		{"Farmácia", "💊", KindExpense},
		{"Casa", "🏠", KindExpense},
		{"Contas", "📄", KindExpense},
		{"Internet/Telefone", "📶", KindExpense},
		{"Streaming", "🎬", KindExpense},
		{"Lazer", "🎉", KindExpense},
		{"Educação", "📚", KindExpense},
		{"Vestuário", "👕", KindExpense},
		{"Assinaturas", "🔁", KindExpense},
		{"Imprevistos", "🚨", KindExpense},
		{"Salário", "💼", KindIncome},
		{"Freela", "🧑‍💻", KindIncome},
		{"Vendas", "💰", KindIncome},
		{"Cashback", "🪙", KindIncome},
	}
	out := make([]Category, 0, len(seed))
	for _, s := range seed {
		out = append(out, Category{Name: s.name, Emoji: s.emoji, Kind: s.kind, IsActive: true})
	}
	return out
}
