package rrdata

import "github.com/haukened/simpledns/internal/dns/domain"

func parseCNAME(data string) (domain.RData, error) {
	target, err := parseDomainName(data)
	if err != nil {
		return nil, err
	}
	return domain.CNAME{Target: target}, nil
}
