/*
Package graph defines dialogue graphs: named nodes, fixed and conditional
edges, an entry node and the whitelist of nodes a conversation may resume at.

A graph is assembled with a Builder and validated by Compile, which reports
every structural problem at once as a *domain.GraphDefinitionError. A compiled
Graph is immutable and safe to share between concurrent turns.

Usage:

	g, err := graph.New().
		AddNode("entry", entry).
		AddNode("greet", greet, graph.WritesResume("classify")).
		AddNode("classify", classify).
		AddConditionalEdge("entry", nil, map[string]string{"greet": "greet", "classify": "classify"}).
		AddEdge("greet", graph.End).
		AddEdge("classify", graph.End).
		SetEntry("entry").
		SetResumable("classify").
		Compile()

Every node is wrapped by Trace, which maintains the path of the current turn
and the current node on the scratchpad.
*/
package graph
