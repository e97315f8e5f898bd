// Command sipvpn runs either end of the tunnel: "sipvpn client" dials a
// fixed server address; "sipvpn server" binds and learns its peer from
// the first valid inbound packet.
package main

func main() {
	Execute()
}
