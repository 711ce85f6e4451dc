// Package domain define contratos e tipos de domínio para o controle de flood.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar as regras de
// detecção/escalonamento de detalhes de infraestrutura.
package domain
