package rrdata

import "github.com/haukened/simpledns/internal/dns/domain"

func parseNS(data string) (domain.RData, error) {
	host, err := parseDomainName(data)
	if err != nil {
		return nil, err
	}
	return domain.NS{Host: host}, nil
}
