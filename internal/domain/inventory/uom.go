package inventory

import (
	"sort"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ConversionGraph grafo dirigido de conversiones de un producto: edges[from][to] = factor.
type ConversionGraph struct {
	edges map[string]map[string]decimal.Decimal
}

// NewConversionGraph construye el grafo con las aristas utilizables (activas, no eliminadas).
func NewConversionGraph(conversions []*entity.UomConversion) *ConversionGraph {
	g := &ConversionGraph{edges: make(map[string]map[string]decimal.Decimal)}
	for _, c := range conversions {
		if c == nil || !c.IsUsable() || c.FromUnit == c.ToUnit || !c.Factor.IsPositive() {
			continue
		}
		if g.edges[c.FromUnit] == nil {
			g.edges[c.FromUnit] = make(map[string]decimal.Decimal)
		}
		g.edges[c.FromUnit][c.ToUnit] = c.Factor
	}
	return g
}

// Resolve devuelve el factor tal que 1 from = factor to.
// from == to vale 1 sin mirar el grafo. La búsqueda es por menor número de saltos (BFS),
// multiplicando factores exactos. Si hay arista directa y también una ruta derivada que
// difiere más que tolerance (relativa), falla con ErrInconsistentConversion.
func (g *ConversionGraph) Resolve(from, to string, tolerance decimal.Decimal) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	direct, hasDirect := g.edges[from][to]
	derived, hasDerived := g.shortestPath(from, to, hasDirect)

	if hasDirect {
		if hasDerived {
			diff := direct.Sub(derived).Abs().Div(direct)
			if diff.GreaterThan(tolerance) {
				return decimal.Zero, domain.NewError(domain.ErrInconsistentConversion, "arista directa y ruta derivada difieren").
					With("from", from).With("to", to).
					With("direct", direct.String()).With("derived", derived.String())
			}
		}
		return direct, nil
	}
	if hasDerived {
		return derived, nil
	}
	return decimal.Zero, domain.NewError(domain.ErrNoConversionPath, "sin ruta en el grafo del producto").
		With("from", from).With("to", to)
}

// shortestPath BFS de from a to; con skipDirect ignora la arista from→to para
// buscar una ruta alternativa de 2 o más saltos.
func (g *ConversionGraph) shortestPath(from, to string, skipDirect bool) (decimal.Decimal, bool) {
	type node struct {
		unit   string
		factor decimal.Decimal
	}
	visited := map[string]bool{from: true}
	queue := []node{{unit: from, factor: decimal.NewFromInt(1)}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.neighbors(cur.unit) {
			if skipDirect && cur.unit == from && next == to {
				continue
			}
			if visited[next] {
				continue
			}
			f := cur.factor.Mul(g.edges[cur.unit][next])
			if next == to {
				return f, true
			}
			visited[next] = true
			queue = append(queue, node{unit: next, factor: f})
		}
	}
	return decimal.Zero, false
}

// neighbors en orden estable para que la resolución sea determinista.
func (g *ConversionGraph) neighbors(unit string) []string {
	out := make([]string, 0, len(g.edges[unit]))
	for u := range g.edges[unit] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
