/*
Package debitor runs debt-collection conversations as a resumable state graph.

Every inbound message is one turn. A turn loads the conversation checkpoint,
runs the dialogue graph from its entry node until a terminal node, and saves
the new checkpoint. Nodes that need to understand the debtor ask an Oracle
(an LLM provider or the offline keyword classifier) for a label from a closed
set, and the graph routes on that label.

Conversations are spread over a fixed number of shards. Each shard owns its
own checkpoint store, oracle and compiled graph; a conversation id always maps
to the same shard.

# Usage

	svc, err := debitor.New(debitor.Config{
		Shards: []debitor.ShardConfig{{DSN: "sqlite:///./data/graph.db", Model: "keyword"}},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	reply, err := svc.Invoke(ctx, "thread-1", "Hello", map[string]any{"company": "Acme"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Output())
*/
package debitor
