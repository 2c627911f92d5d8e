package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goingMerry() Plan {
	return Plan{
		ID:          "minecraft-going-merry",
		Name:        "Going Merry",
		Category:    CategoryMinecraft,
		PriceUSD:    decimal.RequireFromString("3.50"),
		PriceLKR:    decimal.RequireFromString("1100"),
		VCPU:        2,
		RAM:         4,
		Storage:     40,
		StorageType: StorageNVMe,
	}
}

func zoroBlade() Plan {
	return Plan{
		ID:          "vps-zoro-blade-core",
		Name:        "Zoro Blade Core",
		Category:    CategoryVPS,
		PriceUSD:    decimal.RequireFromString("5"),
		PriceLKR:    decimal.RequireFromString("1580"),
		StorageType: StorageSSD,
	}
}

func TestCart_AddItemTwiceMergesLine(t *testing.T) {
	cart := NewCart()
	cart.AddItem(goingMerry())
	cart.AddItem(goingMerry())

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
	assert.Equal(t, 2, cart.TotalItems())
	assert.True(t, decimal.RequireFromString("7.00").Equal(cart.TotalPrice(CurrencyUSD)))
	assert.True(t, decimal.RequireFromString("2200").Equal(cart.TotalPrice(CurrencyLKR)))
}

func TestCart_UpdateQuantity(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int
		wantLines int
		wantItems int
	}{
		{name: "replaces quantity", quantity: 5, wantLines: 2, wantItems: 6},
		{name: "zero removes line", quantity: 0, wantLines: 1, wantItems: 1},
		{name: "negative removes line", quantity: -3, wantLines: 1, wantItems: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := NewCart()
			cart.AddItem(goingMerry())
			cart.AddItem(goingMerry())
			cart.AddItem(zoroBlade())

			cart.UpdateQuantity(goingMerry().ID, tt.quantity)

			assert.Len(t, cart.Lines, tt.wantLines)
			assert.Equal(t, tt.wantItems, cart.TotalItems())
		})
	}
}

func TestCart_UpdateQuantityUnknownPlanIsNoop(t *testing.T) {
	cart := NewCart()
	cart.AddItem(zoroBlade())
	cart.UpdateQuantity("missing", 4)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 1, cart.Lines[0].Quantity)
}

func TestCart_RemoveAndClear(t *testing.T) {
	cart := NewCart()
	cart.AddItem(goingMerry())
	cart.AddItem(zoroBlade())

	cart.RemoveItem("missing")
	assert.Len(t, cart.Lines, 2)

	cart.RemoveItem(goingMerry().ID)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, zoroBlade().ID, cart.Lines[0].Plan.ID)

	cart.Clear()
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 0, cart.TotalItems())
	assert.True(t, cart.TotalPrice(CurrencyUSD).IsZero())
}

func TestCart_SnapshotIgnoresLaterCatalogEdits(t *testing.T) {
	plan := goingMerry()
	cart := NewCart()
	cart.AddItem(plan)

	plan.PriceUSD = decimal.RequireFromString("99")

	assert.True(t, decimal.RequireFromString("3.50").Equal(cart.TotalPrice(CurrencyUSD)))
}

func TestCart_CloneIsIndependent(t *testing.T) {
	cart := NewCart()
	cart.AddItem(goingMerry())

	clone := cart.Clone()
	clone.AddItem(goingMerry())
	clone.AddItem(zoroBlade())

	assert.Equal(t, 1, cart.TotalItems())
	assert.Equal(t, 3, clone.TotalItems())
}

func TestCart_Normalize(t *testing.T) {
	cart := &Cart{Lines: []CartLine{
		{Plan: goingMerry(), Quantity: 1},
		{Plan: zoroBlade(), Quantity: 0},
		{Plan: goingMerry(), Quantity: 2},
		{Plan: Plan{}, Quantity: 4},
	}}

	cart.Normalize()

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, goingMerry().ID, cart.Lines[0].Plan.ID)
	assert.Equal(t, 3, cart.Lines[0].Quantity)
}

type cartOp struct {
	kind     string
	plan     Plan
	quantity int
}

func (op cartOp) apply(c *Cart) {
	switch op.kind {
	case "add":
		c.AddItem(op.plan)
	case "remove":
		c.RemoveItem(op.plan.ID)
	case "update":
		c.UpdateQuantity(op.plan.ID, op.quantity)
	case "clear":
		c.Clear()
	}
}

func requireCartInvariants(t *testing.T, c *Cart, step string) {
	t.Helper()
	seen := make(map[string]bool, len(c.Lines))
	sum := 0
	for _, line := range c.Lines {
		require.False(t, seen[line.Plan.ID], "%s: duplicate line for %s", step, line.Plan.ID)
		require.Greater(t, line.Quantity, 0, "%s: non-positive quantity for %s", step, line.Plan.ID)
		seen[line.Plan.ID] = true
		sum += line.Quantity
	}
	require.Equal(t, sum, c.TotalItems(), step)
	require.Equal(t, len(c.Lines) == 0, c.IsEmpty(), step)
}

func TestCart_OperationSequencesKeepInvariants(t *testing.T) {
	merry, zoro := goingMerry(), zoroBlade()

	tests := []struct {
		name      string
		ops       []cartOp
		wantItems int
		wantLines int
	}{
		{
			name:      "repeated adds merge",
			ops:       []cartOp{{kind: "add", plan: merry}, {kind: "add", plan: merry}, {kind: "add", plan: zoro}, {kind: "add", plan: merry}},
			wantItems: 4,
			wantLines: 2,
		},
		{
			name:      "update to zero removes",
			ops:       []cartOp{{kind: "add", plan: merry}, {kind: "add", plan: zoro}, {kind: "update", plan: merry, quantity: 0}},
			wantItems: 1,
			wantLines: 1,
		},
		{
			name:      "negative update removes",
			ops:       []cartOp{{kind: "add", plan: zoro}, {kind: "update", plan: zoro, quantity: -3}},
			wantItems: 0,
			wantLines: 0,
		},
		{
			name:      "update of absent line is ignored",
			ops:       []cartOp{{kind: "update", plan: merry, quantity: 5}, {kind: "add", plan: zoro}},
			wantItems: 1,
			wantLines: 1,
		},
		{
			name:      "remove then re-add starts at one",
			ops:       []cartOp{{kind: "add", plan: merry}, {kind: "update", plan: merry, quantity: 7}, {kind: "remove", plan: merry}, {kind: "add", plan: merry}},
			wantItems: 1,
			wantLines: 1,
		},
		{
			name:      "clear then add",
			ops:       []cartOp{{kind: "add", plan: merry}, {kind: "add", plan: zoro}, {kind: "clear"}, {kind: "add", plan: zoro}},
			wantItems: 1,
			wantLines: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCart()
			for i, op := range tt.ops {
				op.apply(c)
				requireCartInvariants(t, c, fmt.Sprintf("step %d (%s)", i, op.kind))
			}
			assert.Equal(t, tt.wantItems, c.TotalItems())
			assert.Len(t, c.Lines, tt.wantLines)
		})
	}
}

func TestCart_RandomOperationSequencesKeepInvariants(t *testing.T) {
	plans := []Plan{goingMerry(), zoroBlade()}
	for i := 0; i < 4; i++ {
		p := goingMerry()
		p.ID = fmt.Sprintf("minecraft-extra-%d", i)
		plans = append(plans, p)
	}
	kinds := []string{"add", "add", "add", "remove", "update", "clear"}

	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		c := NewCart()
		model := map[string]int{}

		for step := 0; step < 200; step++ {
			op := cartOp{
				kind:     kinds[rng.Intn(len(kinds))],
				plan:     plans[rng.Intn(len(plans))],
				quantity: rng.Intn(7) - 2,
			}
			op.apply(c)

			switch op.kind {
			case "add":
				model[op.plan.ID]++
			case "remove":
				delete(model, op.plan.ID)
			case "update":
				if op.quantity <= 0 {
					delete(model, op.plan.ID)
				} else if _, ok := model[op.plan.ID]; ok {
					model[op.plan.ID] = op.quantity
				}
			case "clear":
				model = map[string]int{}
			}

			label := fmt.Sprintf("seed %d step %d (%s %s %d)", seed, step, op.kind, op.plan.ID, op.quantity)
			requireCartInvariants(t, c, label)
			got := make(map[string]int, len(c.Lines))
			for _, line := range c.Lines {
				got[line.Plan.ID] = line.Quantity
			}
			require.Equal(t, model, got, label)
		}
	}
}
