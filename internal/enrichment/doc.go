// Package enrichment fills a fetched order with its sticker, photo URL and
// product name.
//
// The photo is resolved in two stages: a direct content lookup by article,
// then a scan of the warehouse's product list. The product list is fetched at
// most once per warehouse per poll cycle (see Cycle). When the list holds
// several entries for one article, the first one wins.
package enrichment
