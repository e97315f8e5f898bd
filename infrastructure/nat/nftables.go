// Pure-netlink NAT masquerade backend: no shell-out, own table/chain
// namespace to avoid clobbering a distro's iptables-nft rules,
// idempotent via a rule's UserData tag rather than its numeric handle.
package nat

import (
	"errors"
	"fmt"
	"reflect"

	nft "github.com/google/nftables"
	"github.com/google/nftables/expr"
)

const (
	tableName = "sipvpn_nat"
	chainName = "postrouting"
	priority  = 100
)

// nftBackend is a stateful nftables-backed Backend implementation.
type nftBackend struct {
	conn *nft.Conn
}

// newNFTBackend opens a lasting netlink connection. Requires CAP_NET_ADMIN.
func newNFTBackend() (*nftBackend, error) {
	conn, err := nft.New(nft.AsLasting())
	if err != nil {
		return nil, fmt.Errorf("nat: nftables conn: %w", err)
	}
	return &nftBackend{conn: conn}, nil
}

// ensureChain creates (idempotently) the backend's own IPv4 nat table
// and postrouting base chain, returning both for rule operations.
func (b *nftBackend) ensureChain() (*nft.Table, *nft.Chain, error) {
	tables, err := b.conn.ListTables()
	if err != nil {
		return nil, nil, fmt.Errorf("nat: list tables: %w", err)
	}
	var t *nft.Table
	for _, existing := range tables {
		if existing.Family == nft.TableFamilyIPv4 && existing.Name == tableName {
			t = existing
			break
		}
	}
	if t == nil {
		t = &nft.Table{Family: nft.TableFamilyIPv4, Name: tableName}
		b.conn.AddTable(t)
	}

	chains, err := b.conn.ListChains()
	if err != nil {
		return nil, nil, fmt.Errorf("nat: list chains: %w", err)
	}
	var ch *nft.Chain
	for _, existing := range chains {
		if existing.Table != nil && existing.Table.Name == t.Name && existing.Table.Family == t.Family && existing.Name == chainName {
			ch = existing
			break
		}
	}
	if ch == nil {
		hook := *nft.ChainHookPostrouting
		prio := nft.ChainPriority(priority)
		ch = &nft.Chain{
			Table:    t,
			Name:     chainName,
			Type:     nft.ChainTypeNAT,
			Hooknum:  &hook,
			Priority: &prio,
		}
		b.conn.AddChain(ch)
	}

	if err := b.conn.Flush(); err != nil {
		return nil, nil, fmt.Errorf("nat: ensure nftables table/chain: %w", err)
	}
	return t, ch, nil
}

// zstr NUL-terminates s the way nft string operands are encoded.
func zstr(s string) []byte { return append([]byte(s), 0x00) }

func exprMasqueradeForOIF(devName string) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
		&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: zstr(devName)},
		&expr.Masq{},
	}
}

func (b *nftBackend) EnableMasquerade(_, devName string) error {
	if devName == "" {
		return errors.New("nat: devName is empty")
	}
	t, ch, err := b.ensureChain()
	if err != nil {
		return err
	}

	tag := []byte("sipvpn:masq oif=" + devName)
	rules, err := b.conn.GetRules(t, ch)
	if err != nil {
		return fmt.Errorf("nat: get rules: %w", err)
	}
	for _, r := range rules {
		if reflect.DeepEqual(r.UserData, tag) {
			return nil // already present
		}
	}
	b.conn.AddRule(&nft.Rule{Table: t, Chain: ch, Exprs: exprMasqueradeForOIF(devName), UserData: tag})
	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nat: flush masquerade rule: %w", err)
	}
	return nil
}

func (b *nftBackend) DisableMasquerade(_, devName string) error {
	if devName == "" {
		return errors.New("nat: devName is empty")
	}
	t, ch, err := b.ensureChain()
	if err != nil {
		return err
	}

	tag := []byte("sipvpn:masq oif=" + devName)
	rules, err := b.conn.GetRules(t, ch)
	if err != nil {
		return fmt.Errorf("nat: get rules: %w", err)
	}
	for _, r := range rules {
		if reflect.DeepEqual(r.UserData, tag) {
			b.conn.DelRule(r)
			break
		}
	}
	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nat: flush masquerade removal: %w", err)
	}
	return nil
}

var _ Backend = (*nftBackend)(nil)
