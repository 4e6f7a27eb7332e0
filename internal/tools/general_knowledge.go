package tools

import (
	"regexp"
	"strings"
)

// topicRule routes a general-knowledge query to an explanation. Rules are
// evaluated in order; the first match wins, and a rule may branch further on
// sub-phrasings inside its responder.
type topicRule struct {
	match   *regexp.Regexp
	respond func(queryLower string) string
}

// GeneralKnowledge answers concept questions from a fixed topic table. This
// path never touches chain state and never calls a chain-reading fetcher.
type GeneralKnowledge struct {
	rules []topicRule
}

// NewGeneralKnowledge builds the topic table
func NewGeneralKnowledge() *GeneralKnowledge {
	return &GeneralKnowledge{rules: buildTopicRules()}
}

// Answer returns an explanation for the query, or the generic welcome when no
// topic matches. Deterministic and total.
func (g *GeneralKnowledge) Answer(query string) string {
	queryLower := strings.ToLower(query)

	for _, rule := range g.rules {
		if rule.match.MatchString(queryLower) {
			return rule.respond(queryLower)
		}
	}

	return "Welcome to the Emerald City of blockchain knowledge. I can help you understand Somnia, smart contracts, tokens, NFTs, DeFi, cryptography, and much more. Ask me anything about your journey through the decentralized world."
}

// matches reports whether the query contains any of the |-separated terms.
// Sub-branch patterns are plain alternations of literals, so a substring scan
// covers them without compiling a regexp per query.
func matches(queryLower, pattern string) bool {
	for _, term := range strings.Split(pattern, "|") {
		if strings.Contains(queryLower, term) {
			return true
		}
	}
	return false
}

func buildTopicRules() []topicRule {
	return []topicRule{
		{
			match: regexp.MustCompile(`somnia`),
			respond: func(q string) string {
				switch {
				case matches(q, `testnet`):
					return "The Somnia testnet is your practice ground in the Emerald City, where developers can deploy and test smart contracts without risking real assets. It uses STT as its native token, perfect for experimenting before the grand mainnet performance."
				case matches(q, `mainnet`):
					return "Somnia mainnet is the production blockchain where real value flows through the Emerald City. Unlike the testnet practice grounds, mainnet transactions involve actual assets and are permanent on the yellow brick road."
				case matches(q, `stt|token`):
					return "STT is the native token of Somnia, the currency that powers the Emerald City. It's used for transaction fees, smart contract execution, and as the fundamental unit of value in the Somnia ecosystem."
				case matches(q, `speed|fast|performance|tps`):
					return "Somnia is designed for high-performance with exceptional transaction speeds, allowing thousands of transactions per second. The Emerald City processes your requests faster than Dorothy's tornado travels."
				case matches(q, `evm|compatible`):
					return "Somnia is EVM-compatible, meaning smart contracts from Ethereum work seamlessly here. Developers can bring their existing spells and enchantments from other chains to the Emerald City."
				}
				return "Somnia is a high-performance blockchain network, the Emerald City of decentralized applications. Built for scalability and speed, it welcomes developers to create magic on the yellow brick road."
			},
		},
		{
			match: regexp.MustCompile(`blockchain`),
			respond: func(q string) string {
				switch {
				case matches(q, `how|work`):
					return "A blockchain is like an enchanted ledger that records every transaction across multiple wizards' towers. Each block contains transaction data and is cryptographically linked to the previous one, creating an unbreakable chain of truth."
				case matches(q, `decentralized`):
					return "Decentralization means no single wizard controls the Emerald City. Instead, many validators work together to verify transactions, ensuring no one can manipulate the truth or rewrite history."
				case matches(q, `consensus`):
					return "Consensus is how all the wizards in the network agree on what's true. Through cryptographic magic and economic incentives, they collectively verify each transaction on the yellow brick road."
				}
				return "A blockchain is a distributed ledger where transactions are recorded in blocks and linked together cryptographically. Think of it as the Emerald City's permanent record book, visible to all but changeable by none."
			},
		},
		{
			match: regexp.MustCompile(`gas|fee`),
			respond: func(q string) string {
				switch {
				case matches(q, `why|purpose`):
					return "Gas fees are the price of magic in the Emerald City. They compensate validators for processing your transactions and prevent spam by making each action cost something, ensuring the network stays efficient."
				case matches(q, `calculate|determine`):
					return "Gas fees are calculated by multiplying gas units (computational work) by gas price (what you're willing to pay). Complex spells require more gas, while simple transfers need less magic."
				case matches(q, `high|expensive`):
					return "Gas fees rise when many travelers crowd the yellow brick road. During peak times, you can pay more to skip ahead in line, or wait patiently for the crowd to thin."
				}
				return "Gas fees are transaction costs paid to validators for processing and securing your journey through the blockchain. Higher gas prices typically result in faster confirmation, like paying for express delivery in the Emerald City."
			},
		},
		{
			match: regexp.MustCompile(`nft`),
			respond: func(q string) string {
				switch {
				case matches(q, `create|mint`):
					return "Minting an NFT means creating a new unique token on the blockchain. You inscribe your digital asset's details into a smart contract, giving it a permanent home in the Emerald City's records."
				case matches(q, `how|work`):
					return "NFTs are unique tokens on the blockchain, each with its own magical properties. Unlike regular coins that are identical, each NFT is as distinct as Dorothy's ruby slippers, with ownership permanently recorded in the Emerald City."
				case matches(q, `erc721|erc1155`):
					return "ERC-721 and ERC-1155 are the standard spells for creating NFTs. ERC-721 creates one-of-a-kind tokens, while ERC-1155 can create both unique and semi-fungible tokens in a single contract."
				case matches(q, `metadata`):
					return "NFT metadata contains the magical properties of your collectible: name, description, image, and attributes. This data can live on-chain in the Emerald City or off-chain in external storage."
				}
				return "NFTs (Non-Fungible Tokens) are unique digital collectibles on the blockchain. Each one has distinct properties and cannot be exchanged one-to-one like regular tokens, making them perfect for art, gaming items, and digital ownership."
			},
		},
		{
			match: regexp.MustCompile(`token`),
			respond: func(q string) string {
				switch {
				case matches(q, `erc20|erc-20`):
					return "ERC-20 is the standard spell for creating fungible tokens on EVM chains. These tokens are interchangeable like coins in a purse, each one identical in value and properties."
				case matches(q, `fungible`):
					return "Fungible tokens are interchangeable, like gold coins in the Emerald City. Each token has the same value and properties, making them perfect for currencies and utility tokens."
				case matches(q, `utility`):
					return "Utility tokens grant access to services or features in the Emerald City. They're like tickets to the Wizard's show, providing specific benefits within their ecosystem."
				case matches(q, `governance`):
					return "Governance tokens give you voting power in the Emerald City's decisions. Hold them to influence protocol changes, treasury spending, and the future direction of the project."
				}
				return "Tokens are digital assets built on blockchain networks. They can represent currency, utility, governance rights, or other assets. Common standards include ERC-20 for fungible tokens and ERC-721 for NFTs."
			},
		},
		{
			match: regexp.MustCompile(`smart contract`),
			respond: func(q string) string {
				switch {
				case matches(q, `how|work`):
					return "Smart contracts are self-executing spells stored in the Emerald City. When conditions are met, they automatically perform actions without needing the Wizard's intervention, ensuring trustless and transparent execution."
				case matches(q, `solidity`):
					return "Solidity is the primary language for writing smart contracts on EVM chains like Somnia. It's the spellbook language that lets you encode logic and rules into the blockchain."
				case matches(q, `deploy`):
					return "Deploying a smart contract means permanently inscribing your code into the blockchain. Once deployed to the Emerald City, the contract lives there forever, executing its magic whenever called."
				case matches(q, `audit|security`):
					return "Smart contract audits are essential security checks before deployment. Expert wizards review your code for vulnerabilities, ensuring no wicked bugs can drain funds or break functionality."
				}
				return "Smart contracts are self-executing programs stored on the blockchain. They automatically execute when predetermined conditions are met, without requiring intermediaries or trust in any single party."
			},
		},
		{
			match: regexp.MustCompile(`private key|seed phrase|mnemonic`),
			respond: func(q string) string {
				return "Your private key is the ultimate secret to your vault in the Emerald City. Guard it like the Wizard guards his secrets - anyone with your private key controls your entire wallet and all its treasures."
			},
		},
		{
			// Checked before the general wallet topic
			match: regexp.MustCompile(`multisig|multi.?sig|multiple.*signat`),
			respond: func(q string) string {
				return "Multisig wallets require multiple signatures to approve transactions, like needing several wizards to agree before opening the vault. They're perfect for shared treasuries and enhanced security."
			},
		},
		{
			match: regexp.MustCompile(`wallet`),
			respond: func(q string) string {
				switch {
				case matches(q, `metamask|connect`):
					return "Wallet connections let you interact with the Emerald City through your browser. MetaMask and similar wallets act as your magical portal, signing transactions and managing your identity on the blockchain."
				case matches(q, `address`):
					return "Your wallet address is your public identity in the Emerald City, starting with 0x followed by 40 hexadecimal characters. Share it freely to receive funds, but never share your private key."
				case matches(q, `custodial|non-custodial`):
					return "Non-custodial wallets give you full control of your private keys - you're the only wizard with access. Custodial wallets are managed by a third party, like leaving your treasures with the Wizard."
				}
				return "A crypto wallet is your magical vault in the Emerald City. It stores your private keys and allows you to interact with blockchain networks, sending, receiving, and managing your digital treasures."
			},
		},
		{
			match: regexp.MustCompile(`proof of stake|pos`),
			respond: func(q string) string {
				return "Proof of Stake is like being chosen as a guardian of the Emerald City based on how much you've invested. Validators stake their tokens to earn the right to verify transactions and earn rewards."
			},
		},
		{
			match: regexp.MustCompile(`proof of work|pow`),
			respond: func(q string) string {
				return "Proof of Work requires solving complex puzzles to add blocks to the chain. Miners compete to solve these cryptographic riddles, with the winner earning the right to write the next page in the ledger."
			},
		},
		{
			match: regexp.MustCompile(`mining|validator|staking`),
			respond: func(q string) string {
				return "Validators are the guardians of the Emerald City, verifying transactions and maintaining the blockchain's security. They stake tokens or computational power to earn the right to validate and receive rewards."
			},
		},
		{
			match: regexp.MustCompile(`liquidity|pool`),
			respond: func(q string) string {
				return "Liquidity pools are shared vaults where traders deposit token pairs. These pools enable instant swaps in the Emerald City, with liquidity providers earning fees from each trade."
			},
		},
		{
			match: regexp.MustCompile(`dex|decentralized exchange`),
			respond: func(q string) string {
				return "Decentralized exchanges (DEXs) let you trade tokens directly with others in the Emerald City, no middleman wizard required. Smart contracts handle the swaps automatically and transparently."
			},
		},
		{
			match: regexp.MustCompile(`yield|farming`),
			respond: func(q string) string {
				return "Yield farming is earning rewards by providing liquidity or staking tokens in DeFi protocols. It's like planting magic beans in the Emerald City and watching your rewards grow."
			},
		},
		{
			match: regexp.MustCompile(`defi|decentralized finance`),
			respond: func(q string) string {
				return "DeFi (Decentralized Finance) brings traditional financial services to the blockchain without banks or intermediaries. Lending, borrowing, trading, and earning interest all happen through smart contracts in the Emerald City."
			},
		},
		{
			match: regexp.MustCompile(`layer 2|l2|scaling|rollup`),
			respond: func(q string) string {
				return "Layer 2 solutions are like express lanes above the main yellow brick road. They process transactions faster and cheaper, then batch them onto the main chain for security."
			},
		},
		{
			match: regexp.MustCompile(`security|safe|protect`),
			respond: func(q string) string {
				return "Security in the Emerald City means protecting your private keys, verifying contracts before interacting, and being wary of phishing attempts. Never share your seed phrase - not even with the Wizard himself."
			},
		},
		{
			match: regexp.MustCompile(`transaction|transfer`),
			respond: func(q string) string {
				switch {
				case matches(q, `pending|confirm`):
					return "Transactions wait in the mempool until validators include them in a block. Higher gas fees can speed up confirmation, moving you to the front of the line on the yellow brick road."
				case matches(q, `failed|revert`):
					return "Transactions can fail if they run out of gas, encounter errors in smart contracts, or violate conditions. Failed transactions still cost gas because validators spent computational power attempting the spell."
				}
				return "Transactions are the heartbeat of the blockchain, moving value and data through the Emerald City. Each one is cryptographically signed, verified by validators, and permanently recorded on the yellow brick road."
			},
		},
		{
			match: regexp.MustCompile(`web3|dapp`),
			respond: func(q string) string {
				return "Web3 is the decentralized internet built on blockchain technology. DApps (decentralized applications) run on the Emerald City's infrastructure, giving users control over their data and digital identity."
			},
		},
		{
			match: regexp.MustCompile(`cryptography|encryption|hash`),
			respond: func(q string) string {
				switch {
				case matches(q, `hash|hashing`):
					return "Cryptographic hashing is the magic spell that turns any data into a unique fixed-length string. Like a fingerprint for data, the same input always produces the same hash, but you can't reverse it to get the original data back."
				case matches(q, `public key|asymmetric`):
					return "Public key cryptography uses two magical keys: a public key you share with everyone, and a private key you keep secret. Messages encrypted with your public key can only be decrypted with your private key."
				}
				return "Cryptography is the foundation of blockchain security, using mathematical spells to encrypt data, verify identities, and ensure transactions can't be tampered with in the Emerald City."
			},
		},
		{
			match: regexp.MustCompile(`address|account`),
			respond: func(q string) string {
				switch {
				case matches(q, `checksum`):
					return "Checksummed addresses use mixed case letters to detect typos. The Wizard verifies each character's case matches the hash, preventing you from sending funds to the wrong destination."
				case matches(q, `ens|domain`):
					return "ENS (Ethereum Name Service) lets you use human-readable names like 'wizard.eth' instead of long hexadecimal addresses. It's like having a memorable address in the Emerald City instead of coordinates."
				}
				return "Blockchain addresses are your unique identifier in the Emerald City, derived from your public key. They start with 0x and contain 40 hexadecimal characters."
			},
		},
		{
			match: regexp.MustCompile(`oracle`),
			respond: func(q string) string {
				return "Blockchain oracles are bridges between the Emerald City and the outside world. They bring real-world data onto the blockchain, allowing smart contracts to react to events like weather, prices, or sports scores."
			},
		},
		{
			match: regexp.MustCompile(`bridge|cross-chain`),
			respond: func(q string) string {
				return "Blockchain bridges let you move assets between different chains, like traveling from one magical land to another. They lock your tokens on one chain and mint equivalent tokens on the destination chain."
			},
		},
		{
			match: regexp.MustCompile(`mempool`),
			respond: func(q string) string {
				return "The mempool is the waiting room for transactions in the Emerald City. Pending transactions sit here until validators pick them up and include them in a block, with higher gas fees getting priority."
			},
		},
		{
			match: regexp.MustCompile(`nonce`),
			respond: func(q string) string {
				return "A nonce is a transaction counter that ensures each transaction from your wallet is processed in order. It's like numbering your letters to the Wizard so they arrive in sequence."
			},
		},
		{
			match: regexp.MustCompile(`abi|application binary interface`),
			respond: func(q string) string {
				return "The ABI (Application Binary Interface) is like a spellbook that tells you how to interact with a smart contract. It defines all the functions, their parameters, and what they return."
			},
		},
		{
			match: regexp.MustCompile(`event|log`),
			respond: func(q string) string {
				return "Smart contract events are announcements broadcast to the Emerald City when something important happens. They're stored in transaction logs and can be searched, making it easy to track contract activity."
			},
		},
		{
			match: regexp.MustCompile(`fork|hard fork|soft fork`),
			respond: func(q string) string {
				switch {
				case matches(q, `hard fork`):
					return "A hard fork is a permanent split in the blockchain, like the yellow brick road dividing into two paths. It requires all validators to upgrade, creating a new version incompatible with the old one."
				case matches(q, `soft fork`):
					return "A soft fork is a backward-compatible upgrade to the blockchain. Old validators can still participate, but new rules are enforced, like adding new signs along the yellow brick road."
				}
				return "Forks are changes to blockchain protocols. Hard forks create permanent splits, while soft forks are backward-compatible upgrades that keep the community together."
			},
		},
		{
			match: regexp.MustCompile(`finality|confirmation`),
			respond: func(q string) string {
				return "Finality is when a transaction becomes permanent and irreversible in the Emerald City. The more blocks built on top of your transaction, the more final it becomes, like pages sealed in the Wizard's book."
			},
		},
		{
			match: regexp.MustCompile(`slashing`),
			respond: func(q string) string {
				return "Slashing is the penalty for misbehaving validators in Proof of Stake. If they try to cheat or go offline, part of their staked tokens are burned, ensuring guardians of the Emerald City stay honest."
			},
		},
		{
			match: regexp.MustCompile(`mev|maximal extractable value|front.?run`),
			respond: func(q string) string {
				return "MEV (Maximal Extractable Value) is profit validators can make by reordering, including, or excluding transactions. It's like having the power to rearrange travelers on the yellow brick road for personal gain."
			},
		},
		{
			match: regexp.MustCompile(`shard`),
			respond: func(q string) string {
				return "Sharding splits the blockchain into parallel chains called shards, each processing its own transactions. It's like having multiple yellow brick roads running side by side, dramatically increasing throughput."
			},
		},
		{
			match: regexp.MustCompile(`ipfs|interplanetary`),
			respond: func(q string) string {
				return "IPFS (InterPlanetary File System) is decentralized storage for files too large for the blockchain. NFT images and metadata often live on IPFS, addressed by their content hash rather than location."
			},
		},
		{
			match: regexp.MustCompile(`dao|decentralized autonomous organization`),
			respond: func(q string) string {
				return "A DAO is a community-governed organization run by smart contracts in the Emerald City. Token holders vote on proposals, and approved decisions execute automatically without central leadership."
			},
		},
		{
			match: regexp.MustCompile(`testnet.*mainnet|mainnet.*testnet|difference.*test`),
			respond: func(q string) string {
				return "Testnets are practice grounds where tokens have no real value, perfect for experimenting. Mainnets are production blockchains where real assets flow. Always test your spells before casting them with real magic."
			},
		},
		{
			match: regexp.MustCompile(`rpc|remote procedure call`),
			respond: func(q string) string {
				return "RPC endpoints are gateways to the blockchain, letting your applications read data and send transactions. They're like magical portals connecting your computer to the Emerald City."
			},
		},
		{
			match: regexp.MustCompile(`node|full node|light node`),
			respond: func(q string) string {
				switch {
				case matches(q, `full node`):
					return "Full nodes store the entire blockchain history and validate every transaction. They're the complete archives of the Emerald City, ensuring the network stays decentralized and secure."
				case matches(q, `light node`):
					return "Light nodes only store block headers and request data as needed. They're like travelers carrying a map instead of the entire library, perfect for mobile devices and quick access."
				}
				return "Nodes are computers running blockchain software, maintaining the network and validating transactions. They're the foundation that keeps the Emerald City running smoothly."
			},
		},
		{
			match: regexp.MustCompile(`impermanent loss`),
			respond: func(q string) string {
				return "Impermanent loss happens when you provide liquidity to a pool and token prices change. You might end up with less value than if you'd just held the tokens, though trading fees can offset this loss."
			},
		},
		{
			match: regexp.MustCompile(`slippage`),
			respond: func(q string) string {
				return "Slippage is the difference between expected and actual trade prices. Large trades in small liquidity pools can cause significant slippage, like trying to exchange too many emeralds at once."
			},
		},
	}
}
