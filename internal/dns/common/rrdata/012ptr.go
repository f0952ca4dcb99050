package rrdata

import "github.com/haukened/simpledns/internal/dns/domain"

func parsePTR(data string) (domain.RData, error) {
	target, err := parseDomainName(data)
	if err != nil {
		return nil, err
	}
	return domain.PTR{Target: target}, nil
}
