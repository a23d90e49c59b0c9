/*
Package client provides Go clients for relay: Client for the HTTP write API
and GatewayConn for a gateway shard's websocket endpoint. The relay CLI is
built on both.

	c := client.NewClient("localhost:3000")
	content, err := c.CreateContent("u1", "/cdn/2024/a.mp4", "")

	g, err := client.DialGateway(ctx, "localhost:4000", "u1")
	msg, err := g.Next(ctx)
*/
package client
